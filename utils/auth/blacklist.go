package auth

import (
	"context"
	"time"

	"github.com/courseforge/api/model"
	"gorm.io/gorm"
)

// BlacklistService handles JWT token revocation
type BlacklistService struct {
	db *gorm.DB
}

// NewBlacklistService creates a new blacklist service
func NewBlacklistService(db *gorm.DB) *BlacklistService {
	return &BlacklistService{db: db}
}

// RevokeToken adds a token's JTI to the blacklist until it expires
func (s *BlacklistService) RevokeToken(ctx context.Context, jti string, userID uint, expiresAt time.Time, reason string) error {
	entry := model.JWTTokenBlacklist{
		Token:     jti,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: expiresAt,
	}

	return s.db.WithContext(ctx).Create(&entry).Error
}

// IsTokenRevoked checks if a token is in the blacklist
func (s *BlacklistService) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.JWTTokenBlacklist{}).
		Where("token = ? AND expires_at > ?", jti, time.Now()).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// RevokeAllUserTokens increments the user's token version to invalidate all
// previously issued tokens at once
func (s *BlacklistService) RevokeAllUserTokens(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1)).
		Error
}
