package service

import (
	"strings"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
)

// targetValidator judges answers against a fixed target set. Item answers
// match on collection and item id; temporal targets additionally require the
// submitted range to overlap the target range. Text answers match any target
// text after trimming and case folding. Answers outside every target are
// WRONG; answer types the target set cannot decide stay INDETERMINATE.
type targetValidator struct {
	items []dto.TargetRequest
	texts map[string]struct{}
}

// newTargetValidator builds a validator, or nil when no targets are
// configured so verdicts stay INDETERMINATE until overridden.
func newTargetValidator(targets []dto.TargetRequest) engine.AnswerValidator {
	v := &targetValidator{texts: make(map[string]struct{})}
	for _, target := range targets {
		if target.ItemID != "" {
			v.items = append(v.items, target)
		}
		for _, text := range target.Texts {
			v.texts[normalizeText(text)] = struct{}{}
		}
	}
	if len(v.items) == 0 && len(v.texts) == 0 {
		return nil
	}
	return v
}

func (v *targetValidator) Judge(answer engine.Answer) engine.Verdict {
	if answer.IsItemRef() {
		if len(v.items) == 0 {
			return engine.VerdictIndeterminate
		}
		for _, target := range v.items {
			if v.matchesItem(target, answer) {
				return engine.VerdictCorrect
			}
		}
		return engine.VerdictWrong
	}
	if answer.Text != "" {
		if len(v.texts) == 0 {
			return engine.VerdictIndeterminate
		}
		if _, ok := v.texts[normalizeText(answer.Text)]; ok {
			return engine.VerdictCorrect
		}
		return engine.VerdictWrong
	}
	return engine.VerdictUndecidable
}

func (v *targetValidator) matchesItem(target dto.TargetRequest, answer engine.Answer) bool {
	if target.Collection != "" && target.Collection != answer.Collection {
		return false
	}
	if target.ItemID != answer.ItemID {
		return false
	}
	if !target.Temporal {
		return true
	}
	if !answer.Temporal {
		return false
	}
	return answer.StartMs <= target.EndMs && target.StartMs <= answer.EndMs
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
