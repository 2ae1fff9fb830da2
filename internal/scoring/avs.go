package scoring

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/engine"
)

// AVSScorer scores ad-hoc search tasks with an open set of acceptable
// targets. Correctness is counted in distinct pieces of evidence: temporal
// submissions for the same item whose ranges touch or overlap merge into one
// covered interval before counting. A team's score combines its precision
// (wrong guesses at half weight) with its recall against the global
// evidence pool found by all teams together.
type AVSScorer struct {
	MaxPointsPerTask float64
}

// NewAVSScorer builds the scorer on the usual 100-point scale.
func NewAVSScorer() AVSScorer {
	return AVSScorer{MaxPointsPerTask: 100}
}

// evidence is one correct answer reduced to its identity for merging.
type evidence struct {
	collection string
	item       string
	temporal   bool
	startMs    int64
	endMs      int64
}

func (s AVSScorer) Score(ctx engine.TaskContext, submissions []engine.Submission) (map[uuid.UUID]float64, error) {
	known := make(map[uuid.UUID]bool, len(ctx.TeamIDs))
	for _, teamID := range ctx.TeamIDs {
		known[teamID] = true
	}

	sorted := sortedByTime(submissions)

	correct := map[uuid.UUID]int{}
	wrong := map[uuid.UUID]int{}
	teamEvidence := map[uuid.UUID][]evidence{}
	var pool []evidence

	for _, sub := range sorted {
		if !known[sub.TeamID] {
			return nil, fmt.Errorf("submission %s from team %s outside task context", sub.ID, sub.TeamID)
		}
		switch sub.Verdict() {
		case engine.VerdictWrong:
			wrong[sub.TeamID]++
		case engine.VerdictCorrect:
			correct[sub.TeamID]++
			if ev, ok := correctEvidence(sub); ok {
				teamEvidence[sub.TeamID] = append(teamEvidence[sub.TeamID], ev)
				pool = append(pool, ev)
			}
		}
	}

	poolSize := countDistinct(pool)
	scores := make(map[uuid.UUID]float64, len(ctx.TeamIDs))
	for _, teamID := range ctx.TeamIDs {
		c := float64(correct[teamID])
		if c == 0 || poolSize == 0 {
			scores[teamID] = 0
			continue
		}
		i := float64(wrong[teamID])
		qc := float64(countDistinct(teamEvidence[teamID]))
		qp := float64(poolSize)
		scores[teamID] = s.MaxPointsPerTask * c / (c + i/2) * qc / qp
	}
	return scores, nil
}

// correctEvidence extracts the evidence identity from the first correct
// answer of a submission.
func correctEvidence(sub engine.Submission) (evidence, bool) {
	for _, answer := range sub.Answers {
		if answer.Verdict != engine.VerdictCorrect {
			continue
		}
		if answer.IsItemRef() {
			return evidence{
				collection: answer.Collection,
				item:       answer.ItemID,
				temporal:   answer.Temporal,
				startMs:    answer.StartMs,
				endMs:      answer.EndMs,
			}, true
		}
		return evidence{item: "text:" + answer.Text}, true
	}
	return evidence{}, false
}

// countDistinct merges the evidence list into distinct pieces: non-temporal
// evidence dedupes by item, temporal evidence merges touching or overlapping
// ranges per item. The result does not depend on input order.
func countDistinct(list []evidence) int {
	plain := map[string]bool{}
	ranges := map[string][]evidence{}
	for _, ev := range list {
		key := ev.collection + "/" + ev.item
		if !ev.temporal {
			plain[key] = true
			continue
		}
		ranges[key] = append(ranges[key], ev)
	}

	count := len(plain)
	for _, group := range ranges {
		count += mergedCount(group)
	}
	return count
}

func mergedCount(group []evidence) int {
	sort.Slice(group, func(i, j int) bool {
		if group[i].startMs != group[j].startMs {
			return group[i].startMs < group[j].startMs
		}
		return group[i].endMs < group[j].endMs
	})
	count := 0
	var coveredEnd int64
	for i, ev := range group {
		if i == 0 || ev.startMs > coveredEnd {
			count++
			coveredEnd = ev.endMs
			continue
		}
		if ev.endMs > coveredEnd {
			coveredEnd = ev.endMs
		}
	}
	return count
}
