package dub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/model"
)

func TestBuildPlans_UsesTranslationWhenAvailable(t *testing.T) {
	segments := []model.Segment{
		{Start: 1, End: 3, Original: "hello", HasTranslation: true, Translation: "bonjour"},
		{Start: 4, End: 5, Original: "world"},
	}
	plans := BuildPlans(segments)

	assert.Equal(t, "bonjour", plans[0].Translation)
	assert.Equal(t, "world", plans[1].Translation) // no translation: falls back to original
	assert.Equal(t, 1.0, plans[1].TargetDurationSec)
}

func TestBuildPlans_FloorsVeryShortDuration(t *testing.T) {
	segments := []model.Segment{{Start: 1, End: 1.01, Original: "x"}}
	plans := BuildPlans(segments)
	assert.Equal(t, 0.05, plans[0].TargetDurationSec)
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 1, BatchSize(1))
	assert.Equal(t, 1, BatchSize(10))
	assert.Equal(t, 2, BatchSize(11))
	assert.Equal(t, 20, BatchSize(200))
	assert.Equal(t, 20, BatchSize(1000)) // capped
}

func TestExtendAllocation_ConsumesGapToNextFirst(t *testing.T) {
	plans := []model.DubPlan{
		{Start: 0, TargetDurationSec: 2, OriginalStart: 0},
		{Start: 5, TargetDurationSec: 2, OriginalStart: 5},
		{Start: 10, TargetDurationSec: 2, OriginalStart: 10},
	}

	gained := extendAllocation(plans, 1, 2.0)

	assert.InDelta(t, 2.0, gained, 1e-9)
	assert.InDelta(t, 4.0, plans[1].TargetDurationSec, 1e-9)
	assert.InDelta(t, 5.0, plans[1].Start, 1e-9) // unshifted: only the forward gap was used
}

func TestExtendAllocation_FallsBackToPreviousGapWhenNextInsufficient(t *testing.T) {
	plans := []model.DubPlan{
		{Start: 0, TargetDurationSec: 2, OriginalStart: 0},
		{Start: 2.1, TargetDurationSec: 1, OriginalStart: 2.1},
		{Start: 2.3, TargetDurationSec: 1, OriginalStart: 2.3}, // leaves almost no forward gap
	}

	gained := extendAllocation(plans, 1, 1.0)

	assert.InDelta(t, 0.1, gained, 1e-9)
	assert.InDelta(t, 2.0, plans[1].Start, 1e-9)
	assert.InDelta(t, 1.1, plans[1].TargetDurationSec, 1e-9)
}

func TestExtendAllocation_NeverExtendsBeforeOriginalStart(t *testing.T) {
	plans := []model.DubPlan{
		{Start: 0, TargetDurationSec: 1, OriginalStart: 0},
		{Start: 5, TargetDurationSec: 1, OriginalStart: 5},
	}

	first := extendAllocation(plans, 1, 10)
	assert.InDelta(t, 0.15, first, 1e-9)
	assert.InDelta(t, 4.85, plans[1].Start, 1e-9)

	second := extendAllocation(plans, 1, 10)
	assert.InDelta(t, 0, second, 1e-9)
	assert.InDelta(t, 4.85, plans[1].Start, 1e-9) // clamped at original_start - slack
}

func TestExtendAllocation_NoExtraNeeded(t *testing.T) {
	plans := []model.DubPlan{{Start: 0, TargetDurationSec: 1, OriginalStart: 0}}
	assert.Equal(t, 0.0, extendAllocation(plans, 0, 0))
	assert.Equal(t, 0.0, extendAllocation(plans, 0, -1))
}

func TestFitClip_NoCompressionNeededWithinTolerance(t *testing.T) {
	plans := []model.DubPlan{{Start: 0, TargetDurationSec: 2, OriginalStart: 0}}

	expr, finalSlot := fitClip(plans, 0, 1.9, 1.35)

	assert.Equal(t, "", expr)
	assert.InDelta(t, 2.0, finalSlot, 1e-9)
}

func TestFitClip_ExtendsSlotBeforeCompressing(t *testing.T) {
	plans := []model.DubPlan{
		{Start: 0, TargetDurationSec: 2, OriginalStart: 0},
		{Start: 10, TargetDurationSec: 2, OriginalStart: 10}, // ample forward gap
	}

	expr, finalSlot := fitClip(plans, 0, 3.0, 1.35)

	assert.Equal(t, "", expr) // slot extended to fully absorb the clip, no atempo needed
	assert.InDelta(t, 3.0, finalSlot, 1e-9)
}

func TestFitClip_CapsCompressionAtMaxRatioWhenNoRoomToExtend(t *testing.T) {
	plans := []model.DubPlan{{Start: 0, TargetDurationSec: 1, OriginalStart: 0}}

	expr, finalSlot := fitClip(plans, 0, 5.0, 1.35)

	assert.Equal(t, "atempo=1.350000", expr)
	assert.InDelta(t, 1.0, finalSlot, 1e-9)
}
