package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/observability"
	"github.com/openvbs/arbiter/internal/utils"
)

// ViewerHandler drives the viewer readiness handshake over a websocket.
// A viewer registers on connect, reports READY once its display has loaded
// the task, and can poll the current task state. Synchronous runs gate task
// starts on every registered viewer being ready.
type ViewerHandler struct {
	executor *engine.Executor
	logger   zerolog.Logger
}

// NewViewerHandler builds a viewer handler instance.
func NewViewerHandler(executor *engine.Executor, logger zerolog.Logger) *ViewerHandler {
	return &ViewerHandler{
		executor: executor,
		logger:   logger.With().Str("component", "viewer_handler").Logger(),
	}
}

type viewerMessage struct {
	Type string `json:"type"`
}

type viewerStateMessage struct {
	Type      string            `json:"type"`
	ViewerID  string            `json:"viewer_id,omitempty"`
	RunStatus string            `json:"run_status,omitempty"`
	Task      *dto.TaskResponse `json:"task,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Upgrade rejects non-websocket requests before the connection handler runs.
func (h *ViewerHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("run_id", c.Params("id"))
		c.Locals("viewer_id", c.Query("viewer"))
		return c.Next()
	}
	return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
}

// Serve returns the websocket connection handler.
func (h *ViewerHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		runID, err := uuid.Parse(conn.Locals("run_id").(string))
		if err != nil {
			h.closeWith(conn, "invalid run id")
			return
		}
		manager, ok := h.executor.ByID(runID)
		if !ok {
			h.closeWith(conn, "run not found")
			return
		}

		viewerID, _ := conn.Locals("viewer_id").(string)
		if viewerID == "" {
			viewerID = uuid.NewString()
		}

		manager.RegisterViewer(viewerID)
		observability.ViewersConnected().Inc()
		logger := h.logger.With().Str("run_id", runID.String()).Str("viewer_id", viewerID).Logger()
		logger.Info().Msg("viewer connected")

		defer func() {
			manager.UnregisterViewer(viewerID)
			observability.ViewersConnected().Dec()
			logger.Info().Msg("viewer disconnected")
		}()

		h.send(conn, viewerStateMessage{Type: "registered", ViewerID: viewerID})

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var message viewerMessage
			if err := json.Unmarshal(payload, &message); err != nil {
				h.send(conn, viewerStateMessage{Type: "error", Error: "invalid message"})
				continue
			}

			switch message.Type {
			case "ready":
				manager.SetViewerReady(viewerID)
				h.send(conn, viewerStateMessage{Type: "ack", ViewerID: viewerID})
			case "state":
				h.send(conn, h.stateMessage(manager))
			default:
				h.send(conn, viewerStateMessage{Type: "error", Error: "unknown message type"})
			}
		}
	})
}

func (h *ViewerHandler) stateMessage(manager engine.RunManager) viewerStateMessage {
	message := viewerStateMessage{Type: "state", RunStatus: string(manager.Status())}
	snapshot, err := manager.CurrentTask(engine.ActionContext{})
	if err == nil {
		task := dto.NewTaskResponse(snapshot)
		// viewers never see submission details
		task.Submissions = nil
		message.Task = &task
	}
	return message
}

func (h *ViewerHandler) send(conn *websocket.Conn, message viewerStateMessage) {
	if err := conn.WriteJSON(message); err != nil {
		h.logger.Debug().Err(err).Msg("viewer write failed")
	}
}

func (h *ViewerHandler) closeWith(conn *websocket.Conn, reason string) {
	h.send(conn, viewerStateMessage{Type: "error", Error: reason})
	_ = conn.Close()
}
