package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services/openrouter"
)

// openTestDB opens an isolated in-memory SQLite database and migrates the
// course schema into it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Module{},
		&model.Lesson{},
		&model.Homework{},
		&model.GenerationLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
		Role:         "student",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

// fakeGateway is a CompletionGateway that replays canned responses and
// counts how many completions were requested.
type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	responses []string
	err       error
}

func (f *fakeGateway) Complete(ctx context.Context, systemPrompt, userPayload string, options ...openrouter.Option) (*openrouter.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	text := ""
	if len(f.responses) > 0 {
		text = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}

	return &openrouter.Completion{
		Text: text,
		Usage: openrouter.Usage{
			PromptTokens:     12,
			CompletionTokens: 34,
			TotalTokens:      46,
		},
	}, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// sampleOutline is a parsed two-module outline used across the course tests
func sampleOutline(topic string) *OutlineDocument {
	return &OutlineDocument{
		Meta: OutlineMeta{Topic: topic},
		Modules: []OutlineModule{
			{
				Title: "Basics",
				Lessons: []OutlineLesson{
					{Title: "A", Type: "lecture"},
					{Title: "B", Type: "exercise"},
				},
				Homework: "Basics practice",
			},
			{
				Title: "Advanced",
				Lessons: []OutlineLesson{
					{Title: "C", Type: "lecture"},
				},
				Homework: "Advanced practice",
			},
		},
	}
}
