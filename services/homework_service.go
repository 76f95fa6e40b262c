package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services/openrouter"
	"github.com/courseforge/api/utils"
	"gorm.io/gorm"
)

// HomeworkService implements generate-or-fetch for homework prompts and the
// submission grading pipeline with its result cache.
type HomeworkService struct {
	db      *gorm.DB
	gateway CompletionGateway
	locks   ArtifactLock
}

// NewHomeworkService creates a new homework service
func NewHomeworkService(db *gorm.DB, gateway CompletionGateway, locks ArtifactLock) *HomeworkService {
	return &HomeworkService{
		db:      db,
		gateway: gateway,
		locks:   locks,
	}
}

// GradeResult is the outcome of a submission check. Status is "cached" when
// the stored grade was reused without a gateway call, "fresh" otherwise.
type GradeResult struct {
	Grade    int    `json:"grade"`
	Feedback string `json:"feedback"`
	Status   string `json:"status"`
}

// gradedReview is the JSON shape the reviewer prompt asks the model for
type gradedReview struct {
	Grade    int    `json:"grade"`
	Feedback string `json:"feedback"`
}

// GenerateOrFetch returns the homework task prompt for a module, generating
// it on first access. Same cache shape as lesson bodies: validity is the
// placeholder length heuristic, misses are serialized by the artifact lock.
func (s *HomeworkService) GenerateOrFetch(ctx context.Context, ownerID, moduleID uint) (*model.Homework, error) {
	homework, module, course, err := s.findOwnedHomework(ctx, ownerID, moduleID)
	if err != nil {
		return nil, err
	}

	if generated(homework.Content) {
		return homework, nil
	}

	release, err := s.locks.Acquire(ctx, "homework", homework.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.db.WithContext(ctx).First(homework, homework.ID).Error; err != nil {
		return nil, err
	}
	if generated(homework.Content) {
		return homework, nil
	}

	payload, err := json.Marshal(map[string]string{
		"module_title":   module.Title,
		"course_topic":   course.Topic,
		"homework_focus": homework.Title,
	})
	if err != nil {
		return nil, err
	}

	completion, err := s.gateway.Complete(ctx, homeworkContentPrompt, string(payload),
		openrouter.WithTemperature(0.5),
	)
	if err != nil {
		// Fails closed: the placeholder row is untouched
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(homework).
		Update("content", completion.Text).Error; err != nil {
		return nil, err
	}
	homework.Content = completion.Text

	return homework, nil
}

// CheckSubmission grades a submission against the module's homework task.
// Resubmitting byte-identical text returns the stored grade without a
// gateway call; any textual difference forces a fresh review.
func (s *HomeworkService) CheckSubmission(ctx context.Context, ownerID, moduleID uint, submission string) (*GradeResult, error) {
	submission = strings.TrimSpace(submission)
	if submission == "" {
		return nil, ErrEmptySubmission
	}

	homework, _, _, err := s.findOwnedHomework(ctx, ownerID, moduleID)
	if err != nil {
		return nil, err
	}
	// A placeholder row cannot be graded against; the task prompt has to be
	// generated first.
	if !generated(homework.Content) {
		return nil, ErrNotFound
	}

	if cached := cachedGrade(homework, submission); cached != nil {
		return cached, nil
	}

	release, err := s.locks.Acquire(ctx, "grade", homework.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.db.WithContext(ctx).First(homework, homework.ID).Error; err != nil {
		return nil, err
	}
	if cached := cachedGrade(homework, submission); cached != nil {
		return cached, nil
	}

	payload, err := json.Marshal(map[string]string{
		"task_description":   homework.Content,
		"student_submission": submission,
	})
	if err != nil {
		return nil, err
	}

	completion, err := s.gateway.Complete(ctx, gradeSubmissionPrompt, string(payload),
		openrouter.WithTemperature(0.3),
		openrouter.WithJSONResponse(),
	)
	if err != nil {
		return nil, err
	}

	var review gradedReview
	if err := utils.ExtractJSONTo(completion.Text, &review); err != nil {
		// Nothing persisted; the previous grade (if any) stays valid
		return nil, err
	}
	review.Grade = clampGrade(review.Grade)
	if review.Feedback == "" {
		review.Feedback = "No feedback generated."
	}

	if err := s.db.WithContext(ctx).
		Model(homework).
		Updates(map[string]interface{}{
			"user_submission": submission,
			"grade":           review.Grade,
			"ai_feedback":     review.Feedback,
		}).Error; err != nil {
		return nil, err
	}

	return &GradeResult{
		Grade:    review.Grade,
		Feedback: review.Feedback,
		Status:   "fresh",
	}, nil
}

// cachedGrade returns the stored result when the submission is byte-equal to
// the last graded one and a grade exists; nil means cache miss.
func cachedGrade(homework *model.Homework, submission string) *GradeResult {
	if homework.IsGraded() && homework.UserSubmission != nil && *homework.UserSubmission == submission {
		return &GradeResult{
			Grade:    *homework.Grade,
			Feedback: homework.AIFeedback,
			Status:   "cached",
		}
	}
	return nil
}

// findOwnedHomework loads the module's homework row with its module and
// course, enforcing the ownership chain.
func (s *HomeworkService) findOwnedHomework(ctx context.Context, ownerID, moduleID uint) (*model.Homework, *model.Module, *model.Course, error) {
	var homework model.Homework
	err := s.db.WithContext(ctx).
		Joins("JOIN modules ON modules.id = homeworks.module_id AND modules.deleted_at IS NULL").
		Joins("JOIN courses ON courses.id = modules.course_id AND courses.deleted_at IS NULL").
		Where("homeworks.module_id = ? AND courses.owner_id = ?", moduleID, ownerID).
		First(&homework).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil, ErrNotFound
		}
		return nil, nil, nil, err
	}

	var module model.Module
	if err := s.db.WithContext(ctx).First(&module, homework.ModuleID).Error; err != nil {
		return nil, nil, nil, err
	}
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, module.CourseID).Error; err != nil {
		return nil, nil, nil, err
	}

	return &homework, &module, &course, nil
}

func clampGrade(grade int) int {
	if grade < 0 {
		return 0
	}
	if grade > 100 {
		return 100
	}
	return grade
}
