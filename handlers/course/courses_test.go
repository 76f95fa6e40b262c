package course

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services"
	"github.com/courseforge/api/services/openrouter"
)

type stubGateway struct {
	text string
}

func (g *stubGateway) Complete(ctx context.Context, systemPrompt, userPayload string, options ...openrouter.Option) (*openrouter.Completion, error) {
	return &openrouter.Completion{
		Text:  g.text,
		Usage: openrouter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

// newCourseApp wires the generate endpoint against an in-memory database and
// a gateway that always answers with the given text.
func newCourseApp(t *testing.T, gatewayText string) *fiber.App {
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

	user := model.User{Email: "owner@example.com", PasswordHash: "x", Name: "Owner", Role: "student"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	handler := NewCourseHandler(services.NewCourseService(db, &stubGateway{text: gatewayText}))

	app := fiber.New()
	app.Post("/api/v1/courses/", func(c *fiber.Ctx) error {
		c.Locals("user_id", user.ID)
		return handler.GenerateCourse(c)
	})
	return app
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func postCourse(t *testing.T, app *fiber.App, body string) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/courses/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, raw
}

func TestGenerateCourseMalformedOutputIsServerError(t *testing.T) {
	app := newCourseApp(t, "Sorry, I cannot produce an outline for that topic today.")

	status, raw := postCourse(t, app, `{"prompt": "Go"}`)
	if status < 500 {
		t.Fatalf("expected a server error status for unparseable model output, got %d", status)
	}

	var body errorEnvelope
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	if body.Error == nil || body.Error.Code != "MALFORMED_GENERATION" {
		t.Errorf("expected MALFORMED_GENERATION error code, got %+v", body.Error)
	}
}

func TestGenerateCourseRespondsOK(t *testing.T) {
	outline := `{"meta": {"topic": "Go"}, "modules": [{"title": "Basics", "lessons": [{"title": "A", "type": "lecture"}], "homework": "Practice"}]}`
	app := newCourseApp(t, outline)

	status, raw := postCourse(t, app, `{"prompt": "Go"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 for a generated course, got %d", status)
	}

	var body struct {
		Success bool `json:"success"`
		Data    *struct {
			Topic string `json:"topic"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Success || body.Data == nil || body.Data.Topic != "Go" {
		t.Errorf("unexpected response payload: %s", raw)
	}
}
