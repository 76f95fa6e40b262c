package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services/openrouter"
	"github.com/courseforge/api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseService generates course outlines and owns the Course CRUD surface.
// Outline generation is deliberately uncached: every accepted request calls
// the model and creates a brand-new course tree.
type CourseService struct {
	db      *gorm.DB
	gateway CompletionGateway
}

// NewCourseService creates a new course service
func NewCourseService(db *gorm.DB, gateway CompletionGateway) *CourseService {
	return &CourseService{
		db:      db,
		gateway: gateway,
	}
}

// OutlineDocument is the structured outline the model returns for a topic
type OutlineDocument struct {
	Meta    OutlineMeta     `json:"meta"`
	Modules []OutlineModule `json:"modules"`
}

// OutlineMeta carries course-level fields of the outline
type OutlineMeta struct {
	Topic string `json:"topic"`
}

// OutlineModule is one module of the outline
type OutlineModule struct {
	Title    string          `json:"title"`
	Lessons  []OutlineLesson `json:"lessons"`
	Homework string          `json:"homework"`
}

// OutlineLesson is one lesson of an outline module
type OutlineLesson struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

const (
	outlineModel       = openrouter.DefaultModel
	outlineTemperature = 0.4
)

// GenerateCourse runs the full outline pipeline: one gateway call, an
// append-only GenerationLog row, outline parsing, then the atomic build.
// The log row is written before the parse step so the audit trail survives
// parse failures.
func (s *CourseService) GenerateCourse(ctx context.Context, ownerID uint, topic string) (*model.Course, error) {
	topic = strings.TrimSpace(topic)

	completion, err := s.gateway.Complete(ctx, courseOutlinePrompt, topic,
		openrouter.WithModel(outlineModel),
		openrouter.WithTemperature(outlineTemperature),
		openrouter.WithJSONResponse(),
	)
	if err != nil {
		return nil, err
	}

	s.logGeneration(ctx, ownerID, topic, completion)

	var outline OutlineDocument
	if err := utils.ExtractJSONTo(completion.Text, &outline); err != nil {
		return nil, err
	}
	if outline.Meta.Topic == "" {
		outline.Meta.Topic = topic
	}

	return s.BuildCourse(ctx, ownerID, &outline)
}

// BuildCourse persists a parsed outline as Course -> Modules -> Lessons plus
// one empty Homework placeholder per module, all inside a single transaction.
// Either the whole tree is committed or nothing is. Homework and lesson
// content are never generated here; that is deferred to explicit requests.
func (s *CourseService) BuildCourse(ctx context.Context, ownerID uint, outline *OutlineDocument) (*model.Course, error) {
	if outline == nil || outline.Meta.Topic == "" || len(outline.Modules) == 0 {
		return nil, ErrMalformedOutline
	}

	course := model.Course{
		OwnerID: ownerID,
		Topic:   outline.Meta.Topic,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return err
		}

		for _, om := range outline.Modules {
			module := model.Module{
				CourseID: course.ID,
				Title:    defaultString(om.Title, "Module"),
			}
			if err := tx.Create(&module).Error; err != nil {
				return err
			}

			for _, ol := range om.Lessons {
				lesson := model.Lesson{
					ModuleID: module.ID,
					Title:    defaultString(ol.Title, "Lesson"),
					Type:     defaultString(ol.Type, "lecture"),
				}
				if err := tx.Create(&lesson).Error; err != nil {
					return err
				}
			}

			homework := model.Homework{
				ModuleID: module.ID,
				Title:    defaultString(om.Homework, "Homework"),
			}
			if err := tx.Create(&homework).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCourse(ctx, ownerID, course.ID)
}

// ListCourses returns the requester's courses with modules and lesson titles
func (s *CourseService) ListCourses(ctx context.Context, ownerID uint) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("modules.id ASC") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("lessons.id ASC") }).
		Order("created_at DESC").
		Find(&courses).Error
	return courses, err
}

// GetCourse returns one owned course with its full tree, or ErrNotFound.
// Not-owned and absent are indistinguishable on purpose.
func (s *CourseService) GetCourse(ctx context.Context, ownerID, courseID uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", courseID, ownerID).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("modules.id ASC") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("lessons.id ASC") }).
		Preload("Modules.Homework").
		First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

// DeleteCourse soft-deletes an owned course and its whole subtree in one
// transaction. Hard removal is left to the cleanup cron.
func (s *CourseService) DeleteCourse(ctx context.Context, ownerID, courseID uint) error {
	var course model.Course
	if err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", courseID, ownerID).
		First(&course).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var moduleIDs []uint
		if err := tx.Model(&model.Module{}).
			Where("course_id = ?", course.ID).
			Pluck("id", &moduleIDs).Error; err != nil {
			return err
		}

		if len(moduleIDs) > 0 {
			if err := tx.Where("module_id IN ?", moduleIDs).Delete(&model.Lesson{}).Error; err != nil {
				return err
			}
			if err := tx.Where("module_id IN ?", moduleIDs).Delete(&model.Homework{}).Error; err != nil {
				return err
			}
			if err := tx.Where("course_id = ?", course.ID).Delete(&model.Module{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&course).Error
	})
}

// logGeneration appends the audit row for a top-level generation request.
// Audit failures are logged, not surfaced; they must not fail the request.
func (s *CourseService) logGeneration(ctx context.Context, ownerID uint, input string, completion *openrouter.Completion) {
	options, _ := json.Marshal(map[string]interface{}{
		"model":           outlineModel,
		"temperature":     outlineTemperature,
		"response_format": "json_object",
	})

	entry := model.GenerationLog{
		UserID:           ownerID,
		UserInput:        input,
		RawOutput:        completion.Text,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
		RequestOptions:   datatypes.JSON(options),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("[CourseService] Failed to write generation log: %v", err)
	}
}

func defaultString(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
