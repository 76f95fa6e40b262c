package homework

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
)

// HomeworkHandler handles homework generation and submission grading
type HomeworkHandler struct {
	homeworks *services.HomeworkService
}

// NewHomeworkHandler creates a new homework handler
func NewHomeworkHandler(homeworks *services.HomeworkService) *HomeworkHandler {
	return &HomeworkHandler{
		homeworks: homeworks,
	}
}

// HomeworkResponse is the homework shape returned to clients
type HomeworkResponse struct {
	ID             uint    `json:"id"`
	ModuleID       uint    `json:"module_id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	UserSubmission *string `json:"user_submission,omitempty"`
	Grade          *int    `json:"grade,omitempty"`
	AIFeedback     string  `json:"ai_feedback,omitempty"`
}

func homeworkResponseFrom(hw *model.Homework) HomeworkResponse {
	return HomeworkResponse{
		ID:             hw.ID,
		ModuleID:       hw.ModuleID,
		Title:          hw.Title,
		Content:        hw.Content,
		UserSubmission: hw.UserSubmission,
		Grade:          hw.Grade,
		AIFeedback:     hw.AIFeedback,
	}
}

// CheckSubmissionRequest represents a homework submission for grading
type CheckSubmissionRequest struct {
	Submission string `json:"submission" validate:"required"`
}

// GenerateHomework handles GET /api/v1/modules/:id/generate_homework. The
// first request generates the task text; later ones return the stored task.
func (h *HomeworkHandler) GenerateHomework(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	moduleID, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid module ID")
	}

	hw, err := h.homeworks.GenerateOrFetch(c.Context(), userID, moduleID)
	if err != nil {
		return homeworkError(c, err)
	}

	return response.Success(c, homeworkResponseFrom(hw))
}

// CheckSubmission handles POST /api/v1/homeworks/:module_id/check. Grading
// is cached per submission text; resubmitting the same text returns the
// stored grade without another model call.
func (h *HomeworkHandler) CheckSubmission(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	moduleID, err := parseID(c, "module_id")
	if err != nil {
		return response.BadRequest(c, "Invalid module ID")
	}

	var req CheckSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.homeworks.CheckSubmission(c.Context(), userID, moduleID, req.Submission)
	if err != nil {
		return homeworkError(c, err)
	}

	return response.Success(c, result)
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func homeworkError(c *fiber.Ctx, err error) error {
	var apiErr *openrouter.APIError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "Homework not found")
	case errors.Is(err, services.ErrEmptySubmission):
		return response.BadRequest(c, "Submission is empty")
	case errors.Is(err, services.ErrGenerationInProgress):
		return response.Conflict(c, "Generation already in progress")
	case errors.Is(err, utils.ErrNoJSONFound):
		return response.MalformedGeneration(c, "Model returned an unusable review")
	case errors.As(err, &apiErr):
		return response.BadGateway(c, "")
	default:
		return response.InternalServerError(c, "")
	}
}
