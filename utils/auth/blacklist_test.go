package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseforge/api/model"
)

func openBlacklistDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.JWTTokenBlacklist{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestRevokeTokenThenIsRevoked(t *testing.T) {
	db := openBlacklistDB(t)
	svc := NewBlacklistService(db)
	ctx := context.Background()

	if err := svc.RevokeToken(ctx, "some-jti", 1, time.Now().Add(time.Hour), "logout"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	revoked, err := svc.IsTokenRevoked(ctx, "some-jti")
	if err != nil {
		t.Fatalf("IsTokenRevoked failed: %v", err)
	}
	if !revoked {
		t.Error("expected revoked token to be reported as revoked")
	}

	other, err := svc.IsTokenRevoked(ctx, "other-jti")
	if err != nil {
		t.Fatalf("IsTokenRevoked failed: %v", err)
	}
	if other {
		t.Error("expected unrelated token to not be revoked")
	}
}

func TestExpiredBlacklistEntryNoLongerBlocks(t *testing.T) {
	db := openBlacklistDB(t)
	svc := NewBlacklistService(db)
	ctx := context.Background()

	if err := svc.RevokeToken(ctx, "stale-jti", 1, time.Now().Add(-time.Minute), "logout"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	revoked, err := svc.IsTokenRevoked(ctx, "stale-jti")
	if err != nil {
		t.Fatalf("IsTokenRevoked failed: %v", err)
	}
	if revoked {
		t.Error("expected an expired blacklist entry to stop blocking")
	}
}

func TestRevokeAllUserTokensBumpsTokenVersion(t *testing.T) {
	db := openBlacklistDB(t)
	svc := NewBlacklistService(db)
	ctx := context.Background()

	user := model.User{Email: "owner@example.com", PasswordHash: "x", Name: "Owner", Role: "student", TokenVersion: 3}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if err := svc.RevokeAllUserTokens(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllUserTokens failed: %v", err)
	}

	var reloaded model.User
	if err := db.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if reloaded.TokenVersion != 4 {
		t.Errorf("expected token version 4 after revocation, got %d", reloaded.TokenVersion)
	}
}
