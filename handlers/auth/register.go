package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courseforge/api/model"
	authutil "github.com/courseforge/api/utils/auth"
	"github.com/courseforge/api/utils/middleware"
	"github.com/courseforge/api/utils/response"
	"github.com/courseforge/api/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		validator:            validation.NewValidator(),
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

// RegisterResponse represents a successful registration response
type RegisterResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func userResponseFrom(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = validation.SanitizeString(req.Email)
	req.Name = validation.SanitizeString(req.Name)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if !authutil.IsPasswordValid(req.Password) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	var existingUser model.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return response.Conflict(c, "User with this email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Role:         "student",
		TokenVersion: 0,
	}

	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create user")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	res := RegisterResponse{
		User:         userResponseFrom(&user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60,
	}

	return response.Created(c, res)
}
