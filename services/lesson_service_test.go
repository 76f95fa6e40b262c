package services

import (
	"context"
	"errors"
	"testing"

	"github.com/courseforge/api/model"
)

func buildLessonFixture(t *testing.T) (*LessonService, *CourseService, *model.Course, *fakeGateway) {
	t.Helper()

	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	courses := NewCourseService(db, &fakeGateway{})
	course, err := courses.BuildCourse(context.Background(), user.ID, sampleOutline("Go"))
	if err != nil {
		t.Fatalf("BuildCourse failed: %v", err)
	}

	gateway := &fakeGateway{responses: []string{"This is the generated lesson body, long enough to count."}}
	lessons := NewLessonService(db, gateway, NewMemoryArtifactLock())
	return lessons, courses, course, gateway
}

func TestLessonMissThenHit(t *testing.T) {
	lessons, _, course, gateway := buildLessonFixture(t)
	owner := course.OwnerID
	lessonID := course.Modules[0].Lessons[0].ID

	first, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID)
	if err != nil {
		t.Fatalf("first GenerateOrFetch failed: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected 1 gateway call after miss, got %d", gateway.callCount())
	}

	second, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID)
	if err != nil {
		t.Fatalf("second GenerateOrFetch failed: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Errorf("expected cache hit to issue no gateway call, got %d calls", gateway.callCount())
	}
	if first.Content != second.Content {
		t.Errorf("cache hit returned different content")
	}
}

func TestLessonCacheHitIsIdempotent(t *testing.T) {
	lessons, _, course, gateway := buildLessonFixture(t)
	owner := course.OwnerID
	lessonID := course.Modules[0].Lessons[0].ID

	var results []string
	for i := 0; i < 3; i++ {
		content, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID)
		if err != nil {
			t.Fatalf("GenerateOrFetch %d failed: %v", i, err)
		}
		results = append(results, content.Content)
	}

	if gateway.callCount() != 1 {
		t.Errorf("expected exactly 1 gateway call across repeats, got %d", gateway.callCount())
	}
	if results[0] != results[1] || results[1] != results[2] {
		t.Errorf("repeated fetches returned different content")
	}
}

func TestLessonOrderIsFlattenedAcrossModules(t *testing.T) {
	lessons, _, course, _ := buildLessonFixture(t)
	owner := course.OwnerID

	// Fixture: module 1 has lessons A, B; module 2 has lesson C
	expected := map[string]int{"A": 1, "B": 2, "C": 3}

	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			content, err := lessons.GenerateOrFetch(context.Background(), owner, l.ID)
			if err != nil {
				t.Fatalf("GenerateOrFetch(%s) failed: %v", l.Title, err)
			}
			if content.OrderID != expected[l.Title] {
				t.Errorf("lesson %s: expected order %d, got %d", l.Title, expected[l.Title], content.OrderID)
			}
		}
	}
}

func TestLessonOrderFallsBackToOne(t *testing.T) {
	lessons, _, course, _ := buildLessonFixture(t)

	// A lesson ID the course does not contain resolves to position 1
	if got := lessons.lessonOrder(context.Background(), course.ID, 999999); got != 1 {
		t.Errorf("expected fallback order 1 for unknown lesson, got %d", got)
	}

	// Same for a course with no modules at all
	if got := lessons.lessonOrder(context.Background(), course.ID+100, course.Modules[0].Lessons[0].ID); got != 1 {
		t.Errorf("expected fallback order 1 for empty course, got %d", got)
	}
}

func TestLessonOwnershipIsolation(t *testing.T) {
	lessons, _, course, gateway := buildLessonFixture(t)
	lessonID := course.Modules[0].Lessons[0].ID

	foreignID := course.OwnerID + 100
	if _, err := lessons.GenerateOrFetch(context.Background(), foreignID, lessonID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign lesson, got %v", err)
	}
	if gateway.callCount() != 0 {
		t.Errorf("ownership failure must not reach the gateway, got %d calls", gateway.callCount())
	}
}

func TestLessonGenerationFailsClosed(t *testing.T) {
	lessons, _, course, gateway := buildLessonFixture(t)
	owner := course.OwnerID
	lessonID := course.Modules[0].Lessons[0].ID

	gateway.err = errors.New("upstream exploded")
	if _, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID); err == nil {
		t.Fatal("expected upstream error to surface")
	}

	// Nothing persisted; the next request is still a miss and succeeds
	gateway.err = nil
	content, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID)
	if err != nil {
		t.Fatalf("retry after failure did not recover: %v", err)
	}
	if content.Content == "" {
		t.Error("expected content after retry")
	}
}

func TestLessonMissAfterCourseDelete(t *testing.T) {
	lessons, courses, course, _ := buildLessonFixture(t)
	owner := course.OwnerID
	lessonID := course.Modules[0].Lessons[0].ID

	if err := courses.DeleteCourse(context.Background(), owner, course.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}

	if _, err := lessons.GenerateOrFetch(context.Background(), owner, lessonID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for lesson of deleted course, got %v", err)
	}
}
