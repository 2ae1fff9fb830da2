package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/middleware"
	"github.com/openvbs/arbiter/internal/service"
	"github.com/openvbs/arbiter/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.post)
	router.Get("/tasks/:taskId", h.listByTask)
	router.Patch("/tasks/:taskId/:submissionId/verdict",
		middleware.WithAuth(h.overrideVerdict, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
}

func (h *SubmissionHandler) post(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Post(c.Context(), actionContext(c), runID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.Created(c, submission, "submission accepted")
}

func (h *SubmissionHandler) listByTask(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	taskID, err := parseUUIDParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByTask(c.Context(), actionContext(c), runID, taskID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) overrideVerdict(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	taskID, err := parseUUIDParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submissionID, err := parseUUIDParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.VerdictOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.OverrideVerdict(c.Context(), actionContext(c), runID, taskID, submissionID, payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "verdict overridden", nil)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message := statusForError(err); status != 0 {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
