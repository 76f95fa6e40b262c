package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/model"
	authutil "github.com/courseforge/api/utils/auth"
	"github.com/courseforge/api/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Failed attempts count even for unknown emails
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordSuccessfulAttempt(c, ip)
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	res := LoginResponse{
		User:         userResponseFrom(&user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60,
	}

	return response.Success(c, res)
}
