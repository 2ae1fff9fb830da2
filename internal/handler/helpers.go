package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/middleware"
	"github.com/openvbs/arbiter/internal/service"
)

func parseUUIDParam(c *fiber.Ctx, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(key))
	if err != nil {
		return uuid.Nil, errors.New("invalid " + key)
	}
	return id, nil
}

func userIDFromContext(c *fiber.Ctx) uuid.UUID {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func teamIDFromContext(c *fiber.Ctx) uuid.UUID {
	if v := c.Locals("team_id"); v != nil {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// actionContext derives the engine-facing identity of the caller from the
// claims the JWT middleware bound to the request.
func actionContext(c *fiber.Ctx) engine.ActionContext {
	return engine.ActionContext{
		UserID:  userIDFromContext(c),
		TeamID:  teamIDFromContext(c),
		IsAdmin: userRoleFromContext(c) == "admin",
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// statusForError maps domain errors to HTTP statuses. Unrecognised errors
// map to 0 so callers fall through to their own 500 handling.
func statusForError(err error) (int, string) {
	var (
		validationErrors validator.ValidationErrors
		illegalState     *engine.IllegalStateError
		rejected         *engine.SubmissionRejectedError
		illegalTeam      *engine.IllegalTeamError
		outOfBounds      *engine.IndexOutOfBoundsError
		denied           *engine.AccessDeniedError
		duplicate        *engine.DuplicateRunError
		taskMissing      *engine.TaskNotFoundError
		subMissing       *engine.SubmissionNotFoundError
	)
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		return fiber.StatusNotFound, "run not found"
	case errors.Is(err, service.ErrUnknownBoard):
		return fiber.StatusNotFound, "unknown scoreboard"
	case errors.As(err, &taskMissing):
		return fiber.StatusNotFound, err.Error()
	case errors.As(err, &subMissing):
		return fiber.StatusNotFound, err.Error()
	case errors.As(err, &validationErrors):
		return fiber.StatusBadRequest, validationErrors.Error()
	case errors.As(err, &outOfBounds):
		return fiber.StatusBadRequest, err.Error()
	case errors.As(err, &denied):
		return fiber.StatusForbidden, err.Error()
	case errors.As(err, &illegalTeam):
		return fiber.StatusForbidden, err.Error()
	case errors.As(err, &illegalState):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &duplicate):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &rejected):
		return fiber.StatusUnprocessableEntity, err.Error()
	default:
		return 0, ""
	}
}
