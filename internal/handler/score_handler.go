package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/scoring"
	"github.com/openvbs/arbiter/internal/service"
	"github.com/openvbs/arbiter/internal/utils"
)

// ScoreHandler exposes scoreboard standings and score histories.
type ScoreHandler struct {
	service service.ScoreService
	logger  zerolog.Logger
}

// NewScoreHandler builds a score handler instance.
func NewScoreHandler(service service.ScoreService, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		service: service,
		logger:  logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Get("", h.boards)
	router.Get("/:board", h.overview)
	router.Get("/:board/series", h.series)
}

func (h *ScoreHandler) boards(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	boards, err := h.service.Boards(runID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "boards retrieved", boards)
}

func (h *ScoreHandler) overview(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	overview, err := h.service.Overview(c.Context(), runID, boardParam(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores retrieved", overview)
}

func (h *ScoreHandler) series(c *fiber.Ctx) error {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	series, err := h.service.Series(c.Context(), runID, boardParam(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score series retrieved", series)
}

func boardParam(c *fiber.Ctx) string {
	board := c.Params("board")
	if board == "" {
		board = scoring.BoardSum
	}
	return board
}

func (h *ScoreHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message := statusForError(err); status != 0 {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
