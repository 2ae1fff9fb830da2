package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/observability"
)

// Executor is the process-wide registry of run managers. It enforces the
// invariant that at most one synchronous run per evaluation template is
// active at a time, resolves managers by id or participating user, and
// drives task timeouts through a poll loop. Constructed once at process
// start and passed to callers explicitly.
type Executor struct {
	mu       sync.RWMutex
	managers map[uuid.UUID]RunManager
	interval time.Duration
	logger   zerolog.Logger
}

// NewExecutor builds an executor polling deadlines at the given interval.
func NewExecutor(interval time.Duration, logger zerolog.Logger) *Executor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Executor{
		managers: map[uuid.UUID]RunManager{},
		interval: interval,
		logger:   logger.With().Str("component", "run_executor").Logger(),
	}
}

// Register adds a manager to the registry. Registering a second synchronous
// manager for a template that already has one in a non-terminated state
// fails with *DuplicateRunError. The uniqueness scan runs under the same
// lock as the registration itself.
func (e *Executor) Register(manager RunManager) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.managers[manager.ID()]; exists {
		return fmt.Errorf("run %s already registered", manager.ID())
	}
	if manager.Synchronous() {
		for _, existing := range e.managers {
			if existing.Synchronous() &&
				existing.TemplateID() == manager.TemplateID() &&
				existing.Status() != RunTerminated {
				return &DuplicateRunError{TemplateID: manager.TemplateID()}
			}
		}
	}
	e.managers[manager.ID()] = manager
	e.logger.Info().Str("run_id", manager.ID().String()).Str("run", manager.Name()).Msg("run registered")
	return nil
}

// Unregister removes a manager from the registry.
func (e *Executor) Unregister(runID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.managers, runID)
}

// ByID resolves a manager by run id.
func (e *Executor) ByID(runID uuid.UUID) (RunManager, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	manager, ok := e.managers[runID]
	return manager, ok
}

// ByUser lists the non-terminated runs the given user participates in.
func (e *Executor) ByUser(userID uuid.UUID) []RunManager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []RunManager
	for _, manager := range e.managers {
		if manager.Status() != RunTerminated && manager.HasParticipant(userID) {
			out = append(out, manager)
		}
	}
	return out
}

// All returns every registered manager, terminated ones included.
func (e *Executor) All() []RunManager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RunManager, 0, len(e.managers))
	for _, manager := range e.managers {
		out = append(out, manager)
	}
	return out
}

// Run drives the deadline poll loop until the context is cancelled. Task
// timeouts are enforced here rather than by blocking inside managers.
func (e *Executor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	e.logger.Info().Dur("interval", e.interval).Msg("deadline poller started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("deadline poller stopped")
			return
		case now := <-ticker.C:
			e.enforce(now)
		}
	}
}

func (e *Executor) enforce(now time.Time) {
	for _, manager := range e.All() {
		if aborted := manager.EnforceDeadlines(now); aborted > 0 {
			observability.TaskDeadlineAborts().Add(float64(aborted))
			e.logger.Debug().Str("run_id", manager.ID().String()).Int("aborted", aborted).Msg("task deadlines enforced")
		}
	}
}
