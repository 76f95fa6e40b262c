package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/utils/auth"
	"github.com/courseforge/api/utils/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	db               *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		db:               db,
	}
}

// Required is middleware that requires a valid JWT access token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization token")
		}

		// Expect "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Unauthorized(c, "Invalid authorization format")
		}

		claims, err := m.jwtManager.ValidateToken(parts[1])
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		if claims.TokenType != "access" {
			return response.Unauthorized(c, "Invalid token type")
		}

		isRevoked, err := m.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
		if err != nil {
			return response.InternalServerError(c, "Failed to check token status")
		}
		if isRevoked {
			return response.Unauthorized(c, "Token has been revoked")
		}

		// Token version must match the user row so password changes and
		// forced logouts invalidate previously issued tokens.
		var user model.User
		if err := m.db.First(&user, claims.UserID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.Unauthorized(c, "User not found")
			}
			return response.InternalServerError(c, "Failed to load user")
		}
		if user.TokenVersion != claims.TokenVersion {
			return response.Unauthorized(c, "Token has been invalidated")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_email", claims.Email)
		c.Locals("claims", claims)
		c.Locals("user", &user)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}

// GetTokenJTI extracts the token JTI from context
func GetTokenJTI(c *fiber.Ctx) (string, bool) {
	jti := c.Locals("token_jti")
	if jti == nil {
		return "", false
	}
	j, ok := jti.(string)
	return j, ok
}
