package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/handler"
	"github.com/openvbs/arbiter/internal/scoring"
)

type stubScoreService struct {
	overview dto.ScoreOverviewResponse
}

func (s stubScoreService) Overview(context.Context, uuid.UUID, string) (dto.ScoreOverviewResponse, error) {
	return s.overview, nil
}

func (s stubScoreService) Series(context.Context, uuid.UUID, string) (dto.ScoreSeriesResponse, error) {
	return dto.ScoreSeriesResponse{Board: s.overview.Board}, nil
}

func (s stubScoreService) Boards(uuid.UUID) ([]string, error) {
	return []string{scoring.BoardSum, scoring.BoardMean, scoring.BoardNormalized}, nil
}

func TestScoreOverviewContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "score_overview.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	svc := stubScoreService{
		overview: dto.ScoreOverviewResponse{
			Board: scoring.BoardSum,
			Scores: []dto.TeamScoreResponse{
				{TeamID: uuid.New().String(), TeamName: "Team Alpha", Score: 187.5},
				{TeamID: uuid.New().String(), TeamName: "Team Beta", Score: 92.0},
			},
		},
	}
	scoreHandler := handler.NewScoreHandler(svc, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/runs/:id/scores", func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.New())
		c.Locals("user_role", "participant")
		return c.Next()
	})
	scoreHandler.Register(group)

	runID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID.String()+"/scores/sum", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
