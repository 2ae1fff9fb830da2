package service

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/scoring"
)

// ScoreboardRegistry maps live runs to their scoreboards. The run service
// creates an entry per run; the score service reads it. Entries outlive run
// termination so final standings stay queryable for the process lifetime.
type ScoreboardRegistry struct {
	mu     sync.RWMutex
	boards map[uuid.UUID]*scoring.Scoreboard
}

// NewScoreboardRegistry constructs an empty registry.
func NewScoreboardRegistry() *ScoreboardRegistry {
	return &ScoreboardRegistry{boards: make(map[uuid.UUID]*scoring.Scoreboard)}
}

// Create registers a fresh scoreboard for the run and returns it.
func (r *ScoreboardRegistry) Create(runID uuid.UUID) *scoring.Scoreboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	board := scoring.NewScoreboard()
	r.boards[runID] = board
	return board
}

// Get resolves the scoreboard of a run.
func (r *ScoreboardRegistry) Get(runID uuid.UUID) (*scoring.Scoreboard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	board, ok := r.boards[runID]
	return board, ok
}
