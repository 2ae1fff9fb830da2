package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
)

func TestTargetValidatorItemMatch(t *testing.T) {
	v := newTargetValidator([]dto.TargetRequest{{Collection: "shots", ItemID: "v001"}})
	require.NotNil(t, v)

	require.Equal(t, engine.VerdictCorrect, v.Judge(engine.Answer{Collection: "shots", ItemID: "v001"}))
	require.Equal(t, engine.VerdictWrong, v.Judge(engine.Answer{Collection: "shots", ItemID: "v002"}))
	require.Equal(t, engine.VerdictWrong, v.Judge(engine.Answer{Collection: "news", ItemID: "v001"}))
}

func TestTargetValidatorTemporalOverlap(t *testing.T) {
	v := newTargetValidator([]dto.TargetRequest{{
		Collection: "shots", ItemID: "v001", StartMs: 10_000, EndMs: 20_000, Temporal: true,
	}})

	require.Equal(t, engine.VerdictCorrect, v.Judge(engine.Answer{
		Collection: "shots", ItemID: "v001", StartMs: 15_000, EndMs: 25_000, Temporal: true,
	}))
	require.Equal(t, engine.VerdictCorrect, v.Judge(engine.Answer{
		Collection: "shots", ItemID: "v001", StartMs: 20_000, EndMs: 30_000, Temporal: true,
	}))
	require.Equal(t, engine.VerdictWrong, v.Judge(engine.Answer{
		Collection: "shots", ItemID: "v001", StartMs: 30_000, EndMs: 40_000, Temporal: true,
	}))
	// right item without a range does not satisfy a temporal target
	require.Equal(t, engine.VerdictWrong, v.Judge(engine.Answer{Collection: "shots", ItemID: "v001"}))
}

func TestTargetValidatorTextMatch(t *testing.T) {
	v := newTargetValidator([]dto.TargetRequest{{Texts: []string{"Golden Gate", "bay bridge"}}})

	require.Equal(t, engine.VerdictCorrect, v.Judge(engine.Answer{Text: "golden gate"}))
	require.Equal(t, engine.VerdictCorrect, v.Judge(engine.Answer{Text: "  BAY BRIDGE  "}))
	require.Equal(t, engine.VerdictWrong, v.Judge(engine.Answer{Text: "brooklyn bridge"}))
}

func TestTargetValidatorUndecidedTypes(t *testing.T) {
	textOnly := newTargetValidator([]dto.TargetRequest{{Texts: []string{"answer"}}})
	require.Equal(t, engine.VerdictIndeterminate, textOnly.Judge(engine.Answer{ItemID: "v001"}))

	itemOnly := newTargetValidator([]dto.TargetRequest{{ItemID: "v001"}})
	require.Equal(t, engine.VerdictIndeterminate, itemOnly.Judge(engine.Answer{Text: "answer"}))

	require.Equal(t, engine.VerdictUndecidable, itemOnly.Judge(engine.Answer{}))
}

func TestTargetValidatorNilWithoutTargets(t *testing.T) {
	require.Nil(t, newTargetValidator(nil))
	require.Nil(t, newTargetValidator([]dto.TargetRequest{{}}))
}
