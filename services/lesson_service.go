package services

import (
	"context"
	"encoding/json"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services/openrouter"
	"gorm.io/gorm"
)

// PlaceholderThreshold is the length heuristic separating a placeholder from
// a finished generation: persisted text longer than this is treated as
// already generated. There is no explicit "generated" flag in the schema.
const PlaceholderThreshold = 10

// generated is the cache validity predicate shared by lesson bodies and
// homework prompts.
func generated(content string) bool {
	return len(content) > PlaceholderThreshold
}

// LessonService implements generate-or-fetch for lesson bodies
type LessonService struct {
	db      *gorm.DB
	gateway CompletionGateway
	locks   ArtifactLock
}

// NewLessonService creates a new lesson service
func NewLessonService(db *gorm.DB, gateway CompletionGateway, locks ArtifactLock) *LessonService {
	return &LessonService{
		db:      db,
		gateway: gateway,
		locks:   locks,
	}
}

// LessonContent is the payload returned by generate-or-fetch
type LessonContent struct {
	ID      uint   `json:"id"`
	OrderID int    `json:"order_id"`
	Content string `json:"content"`
}

// GenerateOrFetch returns the lesson body, generating and persisting it on
// first access. A cache hit issues zero gateway calls. Ownership is verified
// through the module -> course chain on every request; a foreign lesson is
// indistinguishable from an absent one.
func (s *LessonService) GenerateOrFetch(ctx context.Context, ownerID, lessonID uint) (*LessonContent, error) {
	lesson, course, err := s.findOwnedLesson(ctx, ownerID, lessonID)
	if err != nil {
		return nil, err
	}

	if generated(lesson.Content) {
		return &LessonContent{
			ID:      lesson.ID,
			OrderID: s.lessonOrder(ctx, course.ID, lesson.ID),
			Content: lesson.Content,
		}, nil
	}

	release, err := s.locks.Acquire(ctx, "lesson", lesson.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-check under the lock: a concurrent request may have finished the
	// generation between our first read and the acquire.
	if err := s.db.WithContext(ctx).First(lesson, lesson.ID).Error; err != nil {
		return nil, err
	}
	if !generated(lesson.Content) {
		payload, err := json.Marshal(map[string]string{
			"lesson_type":  lesson.Type,
			"lesson_title": lesson.Title,
			"course_topic": course.Topic,
		})
		if err != nil {
			return nil, err
		}

		completion, err := s.gateway.Complete(ctx, lessonContentPrompt, string(payload),
			openrouter.WithTemperature(0.5),
		)
		if err != nil {
			// Fails closed: nothing was persisted, the lesson stays empty
			return nil, err
		}

		if err := s.db.WithContext(ctx).
			Model(lesson).
			Update("content", completion.Text).Error; err != nil {
			return nil, err
		}
		lesson.Content = completion.Text
	}

	return &LessonContent{
		ID:      lesson.ID,
		OrderID: s.lessonOrder(ctx, course.ID, lesson.ID),
		Content: lesson.Content,
	}, nil
}

// findOwnedLesson loads a lesson together with its course, enforcing the
// ownership chain. Absent and not-owned both map to ErrNotFound.
func (s *LessonService) findOwnedLesson(ctx context.Context, ownerID, lessonID uint) (*model.Lesson, *model.Course, error) {
	var lesson model.Lesson
	err := s.db.WithContext(ctx).
		Joins("JOIN modules ON modules.id = lessons.module_id AND modules.deleted_at IS NULL").
		Joins("JOIN courses ON courses.id = modules.course_id AND courses.deleted_at IS NULL").
		Where("lessons.id = ? AND courses.owner_id = ?", lessonID, ownerID).
		First(&lesson).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	var module model.Module
	if err := s.db.WithContext(ctx).First(&module, lesson.ModuleID).Error; err != nil {
		return nil, nil, err
	}
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, module.CourseID).Error; err != nil {
		return nil, nil, err
	}

	return &lesson, &course, nil
}

// lessonOrder computes the 1-based position of a lesson in its course:
// modules by creation order, lessons within a module by creation order,
// flattened. Display only. Falls back to 1 when the lesson is somehow not in
// the recomputed sequence.
func (s *LessonService) lessonOrder(ctx context.Context, courseID, lessonID uint) int {
	var moduleIDs []uint
	if err := s.db.WithContext(ctx).
		Model(&model.Module{}).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Pluck("id", &moduleIDs).Error; err != nil || len(moduleIDs) == 0 {
		return 1
	}

	var lessonIDs []uint
	if err := s.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Where("module_id IN ?", moduleIDs).
		Order("module_id ASC, id ASC").
		Pluck("id", &lessonIDs).Error; err != nil {
		return 1
	}

	for i, id := range lessonIDs {
		if id == lessonID {
			return i + 1
		}
	}
	return 1
}
