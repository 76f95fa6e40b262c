package lesson

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/services"
	"github.com/courseforge/api/services/openrouter"
	"github.com/courseforge/api/utils/middleware"
	"github.com/courseforge/api/utils/response"
)

// LessonHandler handles lesson content requests
type LessonHandler struct {
	lessons *services.LessonService
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(lessons *services.LessonService) *LessonHandler {
	return &LessonHandler{
		lessons: lessons,
	}
}

// GetLesson handles GET /api/v1/lessons/:id. The first request for a lesson
// generates its body; subsequent requests return the stored one.
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	content, err := h.lessons.GenerateOrFetch(c.Context(), userID, uint(id))
	if err != nil {
		return lessonError(c, err)
	}

	return response.Success(c, content)
}

func lessonError(c *fiber.Ctx, err error) error {
	var apiErr *openrouter.APIError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "Lesson not found")
	case errors.Is(err, services.ErrGenerationInProgress):
		return response.Conflict(c, "Generation already in progress")
	case errors.As(err, &apiErr):
		return response.BadGateway(c, "")
	default:
		return response.InternalServerError(c, "")
	}
}
