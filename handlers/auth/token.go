package auth

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/utils/middleware"
	"github.com/courseforge/api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken rotates a refresh token into a new token pair
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	if claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid token type")
	}

	isRevoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}

	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	newAccessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	newRefreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	// Revoke the consumed refresh token so it cannot be replayed
	expiresAt, _ := h.jwtManager.GetTokenExpiry(req.RefreshToken)
	if err := h.blacklistService.RevokeToken(c.Context(), claims.ID, user.ID, expiresAt, "token_refresh"); err != nil {
		log.Printf("[Auth] Failed to revoke old refresh token: %v", err)
	}

	res := RefreshResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    24 * 60 * 60,
	}

	return response.Success(c, res)
}

// Logout revokes the current access token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	jti, ok := middleware.GetTokenJTI(c)
	if !ok {
		return response.BadRequest(c, "No token ID found")
	}

	authHeader := c.Get("Authorization")
	tokenString := ""
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		tokenString = authHeader[7:]
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if tokenString != "" {
		if exp, err := h.jwtManager.GetTokenExpiry(tokenString); err == nil {
			expiresAt = exp
		}
	}

	if err := h.blacklistService.RevokeToken(c.Context(), jti, user.ID, expiresAt, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	return response.Success(c, fiber.Map{
		"message": "Successfully logged out",
	})
}
