package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/handler"
	"github.com/openvbs/arbiter/internal/service"
)

type mockRunService struct {
	run     dto.RunResponse
	task    dto.TaskResponse
	lastAC  engine.ActionContext
	created dto.CreateRunRequest
	err     error
}

func (m *mockRunService) Create(_ context.Context, ac engine.ActionContext, payload dto.CreateRunRequest) (dto.RunResponse, error) {
	m.lastAC = ac
	m.created = payload
	return m.run, m.err
}

func (m *mockRunService) Get(_ context.Context, ac engine.ActionContext, _ uuid.UUID) (dto.RunResponse, error) {
	m.lastAC = ac
	return m.run, m.err
}

func (m *mockRunService) List(_ context.Context, ac engine.ActionContext) []dto.RunResponse {
	m.lastAC = ac
	return []dto.RunResponse{m.run}
}

func (m *mockRunService) Start(_ context.Context, ac engine.ActionContext, _ uuid.UUID) error {
	m.lastAC = ac
	return m.err
}

func (m *mockRunService) End(_ context.Context, ac engine.ActionContext, _ uuid.UUID) error {
	m.lastAC = ac
	return m.err
}

func (m *mockRunService) Next(_ context.Context, _ engine.ActionContext, _ uuid.UUID) (bool, error) {
	return true, m.err
}

func (m *mockRunService) Previous(_ context.Context, _ engine.ActionContext, _ uuid.UUID) (bool, error) {
	return false, m.err
}

func (m *mockRunService) GoTo(_ context.Context, _ engine.ActionContext, _ uuid.UUID, _ int) error {
	return m.err
}

func (m *mockRunService) StartTask(_ context.Context, _ engine.ActionContext, _ uuid.UUID) error {
	return m.err
}

func (m *mockRunService) AbortTask(_ context.Context, _ engine.ActionContext, _ uuid.UUID) error {
	return m.err
}

func (m *mockRunService) AdjustDuration(_ context.Context, _ engine.ActionContext, _ uuid.UUID, delta time.Duration) (time.Duration, error) {
	return 30 * time.Second, m.err
}

func (m *mockRunService) CurrentTask(_ context.Context, _ engine.ActionContext, _ uuid.UUID) (dto.TaskResponse, error) {
	return m.task, m.err
}

func (m *mockRunService) Tasks(_ context.Context, _ engine.ActionContext, _ uuid.UUID) ([]dto.TaskResponse, error) {
	return []dto.TaskResponse{m.task}, m.err
}

func (m *mockRunService) OverrideReady(_ context.Context, _ engine.ActionContext, _ uuid.UUID, _ string) error {
	return m.err
}

func (m *mockRunService) Viewers(_ uuid.UUID) (map[string]bool, error) {
	return map[string]bool{"main": true}, m.err
}

func runApp(svc service.RunService, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.New())
		c.Locals("user_role", role)
		return c.Next()
	})
	handler.NewRunHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/runs"))
	return app
}

func TestRunHandlerCreate(t *testing.T) {
	svc := &mockRunService{run: dto.RunResponse{ID: uuid.New(), Name: "vbs qualifiers"}}
	app := runApp(svc, "admin")

	payload := `{"name":"vbs qualifiers","template_id":"` + uuid.NewString() + `","synchronous":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, svc.lastAC.IsAdmin)
	require.Equal(t, "vbs qualifiers", svc.created.Name)
}

func TestRunHandlerCreateForbiddenForParticipants(t *testing.T) {
	svc := &mockRunService{}
	app := runApp(svc, "participant")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRunHandlerGetInvalidID(t *testing.T) {
	svc := &mockRunService{}
	app := runApp(svc, "participant")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRunHandlerNotFound(t *testing.T) {
	svc := &mockRunService{err: service.ErrRunNotFound}
	app := runApp(svc, "participant")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRunHandlerIllegalStateConflict(t *testing.T) {
	svc := &mockRunService{err: &engine.IllegalStateError{Op: "task start", State: "run is CREATED"}}
	app := runApp(svc, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+uuid.NewString()+"/tasks/start", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestRunHandlerNext(t *testing.T) {
	svc := &mockRunService{}
	app := runApp(svc, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+uuid.NewString()+"/tasks/next", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data map[string]bool `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Data["moved"])
}

func TestRunHandlerAdjustDuration(t *testing.T) {
	svc := &mockRunService{}
	app := runApp(svc, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+uuid.NewString()+"/tasks/duration",
		strings.NewReader(`{"delta_seconds":30}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data map[string]float64 `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, 30.0, body.Data["remaining_seconds"])
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
