package services

import (
	"context"
	"errors"
	"testing"

	"github.com/courseforge/api/model"
)

func TestGenerateCourseBuildsFullTree(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	gateway := &fakeGateway{responses: []string{
		`Here is your course: {"meta":{"topic":"Go"},"modules":[{"title":"Basics","lessons":[{"title":"A","type":"lecture"},{"title":"B","type":"exercise"}],"homework":"Basics practice"},{"title":"Advanced","lessons":[{"title":"C","type":"lecture"}],"homework":"Advanced practice"}]} Enjoy!`,
	}}
	svc := NewCourseService(db, gateway)

	course, err := svc.GenerateCourse(context.Background(), user.ID, "Go")
	if err != nil {
		t.Fatalf("GenerateCourse failed: %v", err)
	}

	if course.Topic != "Go" {
		t.Errorf("expected topic %q, got %q", "Go", course.Topic)
	}
	if len(course.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(course.Modules))
	}
	if len(course.Modules[0].Lessons) != 2 || len(course.Modules[1].Lessons) != 1 {
		t.Errorf("unexpected lesson distribution: %d/%d",
			len(course.Modules[0].Lessons), len(course.Modules[1].Lessons))
	}
	for _, m := range course.Modules {
		if m.Homework == nil {
			t.Errorf("module %q missing homework placeholder", m.Title)
		}
	}
	if gateway.callCount() != 1 {
		t.Errorf("expected 1 gateway call, got %d", gateway.callCount())
	}

	// Lesson bodies and homework prompts must stay empty at build time
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			if l.Content != "" {
				t.Errorf("lesson %q pre-generated content", l.Title)
			}
		}
	}
}

func TestGenerateCourseWritesGenerationLog(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	gateway := &fakeGateway{responses: []string{
		`{"meta":{"topic":"SQL"},"modules":[{"title":"Joins","lessons":[{"title":"Inner","type":"lecture"}],"homework":"Join practice"}]}`,
	}}
	svc := NewCourseService(db, gateway)

	if _, err := svc.GenerateCourse(context.Background(), user.ID, "SQL"); err != nil {
		t.Fatalf("GenerateCourse failed: %v", err)
	}

	var logs []model.GenerationLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("failed to read generation logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 generation log, got %d", len(logs))
	}
	if logs[0].UserID != user.ID || logs[0].UserInput != "SQL" {
		t.Errorf("unexpected log row: %+v", logs[0])
	}
	if logs[0].TotalTokens != 46 {
		t.Errorf("expected 46 total tokens, got %d", logs[0].TotalTokens)
	}
}

func TestGenerateCourseAuditSurvivesParseFailure(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	gateway := &fakeGateway{responses: []string{"sorry, I cannot help with that"}}
	svc := NewCourseService(db, gateway)

	if _, err := svc.GenerateCourse(context.Background(), user.ID, "Go"); err == nil {
		t.Fatal("expected error for unparseable outline")
	}

	var logCount int64
	db.Model(&model.GenerationLog{}).Count(&logCount)
	if logCount != 1 {
		t.Errorf("expected the audit row to survive the parse failure, got %d rows", logCount)
	}

	var courseCount int64
	db.Model(&model.Course{}).Count(&courseCount)
	if courseCount != 0 {
		t.Errorf("expected no course rows, got %d", courseCount)
	}
}

func TestGenerateCourseTopicFallsBackToRequest(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	gateway := &fakeGateway{responses: []string{
		`{"meta":{},"modules":[{"title":"Only","lessons":[{"title":"L","type":"lecture"}],"homework":"HW"}]}`,
	}}
	svc := NewCourseService(db, gateway)

	course, err := svc.GenerateCourse(context.Background(), user.ID, "Rust basics")
	if err != nil {
		t.Fatalf("GenerateCourse failed: %v", err)
	}
	if course.Topic != "Rust basics" {
		t.Errorf("expected request topic fallback, got %q", course.Topic)
	}
}

func TestBuildCourseRejectsEmptyOutline(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	svc := NewCourseService(db, &fakeGateway{})

	cases := []*OutlineDocument{
		nil,
		{Meta: OutlineMeta{Topic: "Go"}},
		{Modules: sampleOutline("x").Modules},
	}
	for _, outline := range cases {
		if _, err := svc.BuildCourse(context.Background(), user.ID, outline); !errors.Is(err, ErrMalformedOutline) {
			t.Errorf("expected ErrMalformedOutline, got %v", err)
		}
	}

	var count int64
	db.Model(&model.Course{}).Count(&count)
	if count != 0 {
		t.Errorf("expected zero persisted courses, got %d", count)
	}
}

func TestBuildCourseFillsDefaultTitles(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	svc := NewCourseService(db, &fakeGateway{})

	outline := &OutlineDocument{
		Meta: OutlineMeta{Topic: "Go"},
		Modules: []OutlineModule{
			{Lessons: []OutlineLesson{{}}},
		},
	}

	course, err := svc.BuildCourse(context.Background(), user.ID, outline)
	if err != nil {
		t.Fatalf("BuildCourse failed: %v", err)
	}

	m := course.Modules[0]
	if m.Title != "Module" {
		t.Errorf("expected default module title, got %q", m.Title)
	}
	if m.Lessons[0].Title != "Lesson" || m.Lessons[0].Type != "lecture" {
		t.Errorf("expected default lesson fields, got %q/%q", m.Lessons[0].Title, m.Lessons[0].Type)
	}
	if m.Homework == nil || m.Homework.Title != "Homework" {
		t.Errorf("expected default homework title, got %+v", m.Homework)
	}
}

func TestCourseOwnershipIsolation(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	svc := NewCourseService(db, &fakeGateway{})

	course, err := svc.BuildCourse(context.Background(), owner.ID, sampleOutline("Go"))
	if err != nil {
		t.Fatalf("BuildCourse failed: %v", err)
	}

	if _, err := svc.GetCourse(context.Background(), other.ID, course.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign course, got %v", err)
	}
	if err := svc.DeleteCourse(context.Background(), other.ID, course.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign delete, got %v", err)
	}

	courses, err := svc.ListCourses(context.Background(), other.ID)
	if err != nil {
		t.Fatalf("ListCourses failed: %v", err)
	}
	if len(courses) != 0 {
		t.Errorf("expected empty listing for other user, got %d courses", len(courses))
	}
}

func TestDeleteCourseRemovesWholeTree(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	svc := NewCourseService(db, &fakeGateway{})

	course, err := svc.BuildCourse(context.Background(), user.ID, sampleOutline("Go"))
	if err != nil {
		t.Fatalf("BuildCourse failed: %v", err)
	}

	if err := svc.DeleteCourse(context.Background(), user.ID, course.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}

	if _, err := svc.GetCourse(context.Background(), user.ID, course.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Soft-deleted children stay out of default queries
	var lessonCount int64
	db.Model(&model.Lesson{}).Count(&lessonCount)
	if lessonCount != 0 {
		t.Errorf("expected lessons to be soft-deleted, %d still visible", lessonCount)
	}

	// But the rows survive for the retention window
	var rawCount int64
	db.Unscoped().Model(&model.Lesson{}).Count(&rawCount)
	if rawCount == 0 {
		t.Error("expected soft-deleted lesson rows to remain until purge")
	}
}
