package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/model"
	authutil "github.com/courseforge/api/utils/auth"
	"github.com/courseforge/api/utils/middleware"
	"github.com/courseforge/api/utils/response"
	"github.com/courseforge/api/utils/validation"
)

// UpdateProfileRequest represents a profile update request. Setting a new
// password revokes every previously issued token for the account.
type UpdateProfileRequest struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// GetProfile retrieves the current user's profile
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	return response.Success(c, userResponseFrom(&user))
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	if name := validation.SanitizeString(req.Name); name != "" {
		user.Name = name
	}

	passwordChanged := false
	if req.Password != "" {
		if !authutil.IsPasswordValid(req.Password) {
			return response.BadRequest(c, "Password must be at least 8 characters long")
		}
		hashed, err := authutil.HashPassword(req.Password)
		if err != nil {
			return response.InternalServerError(c, "Failed to process password")
		}
		user.PasswordHash = hashed
		passwordChanged = true
	}

	if err := h.db.Save(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	// A password change bumps the token version so every outstanding
	// access and refresh token stops validating
	if passwordChanged {
		if err := h.blacklistService.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
			return response.InternalServerError(c, "Failed to revoke existing sessions")
		}
	}

	return response.Success(c, userResponseFrom(&user))
}
