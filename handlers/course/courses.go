package course

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/model"
	"github.com/courseforge/api/services"
	"github.com/courseforge/api/services/openrouter"
	"github.com/courseforge/api/utils"
	"github.com/courseforge/api/utils/middleware"
	"github.com/courseforge/api/utils/response"
	"github.com/courseforge/api/utils/validation"
)

// CourseHandler handles course-related requests
type CourseHandler struct {
	courses *services.CourseService
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *services.CourseService) *CourseHandler {
	return &CourseHandler{
		courses: courses,
	}
}

// GenerateCourseRequest represents the request body for generating a course
type GenerateCourseRequest struct {
	Prompt string `json:"prompt" validate:"required,min=2"`
}

// LessonSummary lists a lesson without its body
type LessonSummary struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// HomeworkSummary lists a homework without its content
type HomeworkSummary struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// ModuleSummary lists a module with its lessons and homework
type ModuleSummary struct {
	ID       uint             `json:"id"`
	Title    string           `json:"title"`
	Lessons  []LessonSummary  `json:"lessons"`
	Homework *HomeworkSummary `json:"homework,omitempty"`
}

// CourseSummary is the course shape returned by the listing endpoints.
// Lesson bodies stay out of it so unread generated content never ships
// with a listing.
type CourseSummary struct {
	ID      uint            `json:"id"`
	Topic   string          `json:"topic"`
	Modules []ModuleSummary `json:"modules"`
}

func summarize(course *model.Course) CourseSummary {
	summary := CourseSummary{
		ID:      course.ID,
		Topic:   course.Topic,
		Modules: make([]ModuleSummary, 0, len(course.Modules)),
	}
	for _, m := range course.Modules {
		ms := ModuleSummary{
			ID:      m.ID,
			Title:   m.Title,
			Lessons: make([]LessonSummary, 0, len(m.Lessons)),
		}
		for _, l := range m.Lessons {
			ms.Lessons = append(ms.Lessons, LessonSummary{
				ID:    l.ID,
				Title: l.Title,
				Type:  l.Type,
			})
		}
		if m.Homework != nil {
			ms.Homework = &HomeworkSummary{
				ID:    m.Homework.ID,
				Title: m.Homework.Title,
			}
		}
		summary.Modules = append(summary.Modules, ms)
	}
	return summary
}

// GenerateCourse handles POST /api/v1/courses/
func (h *CourseHandler) GenerateCourse(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req GenerateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	topic := validation.SanitizeString(req.Prompt)
	if topic == "" {
		return response.BadRequest(c, "Prompt is required")
	}

	course, err := h.courses.GenerateCourse(c.Context(), userID, topic)
	if err != nil {
		return courseError(c, err)
	}

	return response.Success(c, summarize(course))
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	courses, err := h.courses.ListCourses(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}

	summaries := make([]CourseSummary, 0, len(courses))
	for i := range courses {
		summaries = append(summaries, summarize(&courses[i]))
	}

	return response.Success(c, summaries)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	courseID, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.courses.GetCourse(c.Context(), userID, courseID)
	if err != nil {
		return courseError(c, err)
	}

	return response.Success(c, summarize(course))
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	courseID, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	if err := h.courses.DeleteCourse(c.Context(), userID, courseID); err != nil {
		return courseError(c, err)
	}

	return response.SuccessWithMessage(c, "Course deleted", nil)
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// courseError maps service errors onto the HTTP surface
func courseError(c *fiber.Ctx, err error) error {
	var apiErr *openrouter.APIError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "Course not found")
	case errors.Is(err, services.ErrGenerationInProgress):
		return response.Conflict(c, "Generation already in progress")
	case errors.Is(err, services.ErrMalformedOutline), errors.Is(err, utils.ErrNoJSONFound):
		return response.MalformedGeneration(c, "Model returned an unusable course outline")
	case errors.As(err, &apiErr):
		return response.BadGateway(c, "")
	default:
		return response.InternalServerError(c, "")
	}
}
