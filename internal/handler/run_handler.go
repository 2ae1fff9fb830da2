package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/middleware"
	"github.com/openvbs/arbiter/internal/service"
	"github.com/openvbs/arbiter/internal/utils"
)

// RunHandler manages run lifecycle endpoints.
type RunHandler struct {
	service service.RunService
	logger  zerolog.Logger
}

// NewRunHandler builds a run handler instance.
func NewRunHandler(service service.RunService, logger zerolog.Logger) *RunHandler {
	return &RunHandler{
		service: service,
		logger:  logger.With().Str("component", "run_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RunHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Get("/:id", h.get)
	router.Post("/:id/start", middleware.WithAuth(h.start, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Post("/:id/end", middleware.WithAuth(h.end, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Post("/:id/tasks/next", h.next)
	router.Post("/:id/tasks/previous", h.previous)
	router.Post("/:id/tasks/select", h.goTo)
	router.Post("/:id/tasks/start", h.startTask)
	router.Post("/:id/tasks/abort", h.abortTask)
	router.Post("/:id/tasks/duration", middleware.WithAuth(h.adjustDuration, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Get("/:id/tasks", h.tasks)
	router.Get("/:id/tasks/current", h.currentTask)
	router.Get("/:id/viewers", middleware.WithAuth(h.viewers, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Post("/:id/viewers/:viewer/ready", middleware.WithAuth(h.overrideReady, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
}

func (h *RunHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateRunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	run, err := h.service.Create(c.Context(), actionContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.Created(c, run, "run created")
}

func (h *RunHandler) list(c *fiber.Ctx) error {
	runs := h.service.List(c.Context(), actionContext(c))
	return utils.SendSuccess(c, "runs retrieved", runs)
}

func (h *RunHandler) get(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	run, err := h.service.Get(c.Context(), actionContext(c), runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "run retrieved", run)
}

func (h *RunHandler) start(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Start, "run started")
}

func (h *RunHandler) end(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.End, "run ended")
}

func (h *RunHandler) startTask(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.StartTask, "task started")
}

func (h *RunHandler) abortTask(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.AbortTask, "task aborted")
}

func (h *RunHandler) lifecycle(c *fiber.Ctx, op func(context.Context, engine.ActionContext, uuid.UUID) error, message string) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := op(c.Context(), actionContext(c), runID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, nil)
}

func (h *RunHandler) next(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	moved, err := h.service.Next(c.Context(), actionContext(c), runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task selection updated", fiber.Map{"moved": moved})
}

func (h *RunHandler) previous(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	moved, err := h.service.Previous(c.Context(), actionContext(c), runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task selection updated", fiber.Map{"moved": moved})
}

func (h *RunHandler) goTo(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GoToTaskRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.GoTo(c.Context(), actionContext(c), runID, payload.Index); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task selection updated", nil)
}

func (h *RunHandler) adjustDuration(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AdjustDurationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	remaining, err := h.service.AdjustDuration(c.Context(), actionContext(c), runID, time.Duration(payload.DeltaSeconds)*time.Second)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task duration adjusted", fiber.Map{"remaining_seconds": remaining.Seconds()})
}

func (h *RunHandler) tasks(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	tasks, err := h.service.Tasks(c.Context(), actionContext(c), runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "tasks retrieved", tasks)
}

func (h *RunHandler) currentTask(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	task, err := h.service.CurrentTask(c.Context(), actionContext(c), runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *RunHandler) viewers(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	viewers, err := h.service.Viewers(runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "viewers retrieved", viewers)
}

func (h *RunHandler) overrideReady(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	viewerID := c.Params("viewer")
	if err := h.service.OverrideReady(c.Context(), actionContext(c), runID, viewerID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "viewer marked ready", nil)
}

func (h *RunHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message := statusForError(err); status != 0 {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
