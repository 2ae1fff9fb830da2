package engine

import (
	"math/rand"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a whole evaluation run.
type RunStatus string

const (
	RunCreated    RunStatus = "CREATED"
	RunActive     RunStatus = "ACTIVE"
	RunTerminated RunStatus = "TERMINATED"
)

// RunProperties configures run-wide behaviour.
type RunProperties struct {
	ParticipantsCanView    bool
	ShuffleTasks           bool
	SubmissionPreviewLimit int
	AllowRepeatedTasks     bool
}

// Run is the in-memory aggregate for one evaluation: template order, the
// participating teams and run-wide properties. Task instances are
// materialised by the owning manager (one shared sequence for synchronous
// runs, one per team for asynchronous runs).
type Run struct {
	ID         uuid.UUID
	TemplateID uuid.UUID
	Name       string
	Properties RunProperties
	Teams      []Team
	Templates  []TaskTemplate
}

// NewRun builds the aggregate, shuffling the template order when the
// properties ask for it.
func NewRun(templateID uuid.UUID, name string, properties RunProperties, teams []Team, templates []TaskTemplate) *Run {
	order := make([]TaskTemplate, len(templates))
	copy(order, templates)
	if properties.ShuffleTasks {
		rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return &Run{
		ID:         uuid.New(),
		TemplateID: templateID,
		Name:       name,
		Properties: properties,
		Teams:      teams,
		Templates:  order,
	}
}

// TeamIDs lists the participating team identifiers in declaration order.
func (r *Run) TeamIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Teams))
	for i, team := range r.Teams {
		ids[i] = team.ID
	}
	return ids
}

// TeamOf resolves the team a user submits for, or false if the user is not a
// member of any participating team.
func (r *Run) TeamOf(userID uuid.UUID) (uuid.UUID, bool) {
	for _, team := range r.Teams {
		if team.HasMember(userID) {
			return team.ID, true
		}
	}
	return uuid.Nil, false
}

// HasTeam reports whether the given team participates in the run.
func (r *Run) HasTeam(teamID uuid.UUID) bool {
	for _, team := range r.Teams {
		if team.ID == teamID {
			return true
		}
	}
	return false
}
