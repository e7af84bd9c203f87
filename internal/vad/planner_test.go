package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/model"
)

func TestNormalize_MergesCloseIntervalsAndDropsShort(t *testing.T) {
	in := []model.Interval{
		{Start: 5.0, End: 5.05},  // isolated, shorter than MinDurationSec(0.1): dropped
		{Start: 1.0, End: 2.0},
		{Start: 2.2, End: 3.0},   // gap 0.2s < VADNormalizationMinGapSec(0.5): merges into prior
		{Start: 10.0, End: 10.05}, // isolated, shorter than MinDurationSec(0.1): dropped
	}
	out := Normalize(in)

	assert.Len(t, out, 1)
	assert.Equal(t, model.Interval{Start: 1.0, End: 3.0}, out[0])
}

func TestNormalize_Empty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}

func TestMergeAndSplit_MergesAdjacentAndSplitsLong(t *testing.T) {
	in := []model.Interval{
		{Start: 0, End: 1},
		{Start: 1.2, End: 2}, // gap 0.2 < MergeGapSec(0.5): merges
		{Start: 10, End: 30}, // gap 8 >= MergeGapSec: stays separate, but duration 20 > MaxSpeechlessSec(15): splits
	}
	out := MergeAndSplit(in)

	assert.Len(t, out, 3)
	assert.Equal(t, model.Interval{Start: 0, End: 2}, out[0])
	assert.Equal(t, 10.0, out[1].Start)
	assert.Equal(t, 20.0, out[1].End)
	assert.Equal(t, 20.0, out[2].Start)
	assert.Equal(t, 30.0, out[2].End)
}

func TestPlanner_Plan_GroupsPaddedIntervalsIntoChunks(t *testing.T) {
	p := NewPlanner()
	raw := []model.Interval{
		{Start: 1, End: 3},
		{Start: 4, End: 6},
		{Start: 50, End: 52},
	}
	chunks, speech := p.Plan(raw, 100)

	assert.NotEmpty(t, speech)
	if assert.NotEmpty(t, chunks) {
		for _, c := range chunks {
			assert.True(t, c.Valid())
		}
	}
}

func TestPlanner_Plan_ChunksDoNotOverlap(t *testing.T) {
	p := NewPlanner()
	p.MaxChunkDurationSec = 5 // force a close partway through these intervals
	raw := []model.Interval{
		{Start: 1, End: 3},
		{Start: 4, End: 6},
		{Start: 50, End: 52},
	}
	chunks, _ := p.Plan(raw, 100)

	if assert.Len(t, chunks, 2) {
		assert.Equal(t, model.Interval{Start: 0.9, End: 6.15}, chunks[0])
		assert.Equal(t, model.Interval{Start: 49.9, End: 52.15}, chunks[1])
		// The second chunk must not start before the first ends — a
		// prior version re-merged the interval that triggered the close
		// into both the closed chunk and the reopened one.
		assert.GreaterOrEqual(t, chunks[1].Start, chunks[0].End)
	}
}

func TestPlanner_Plan_EmptyIntervals(t *testing.T) {
	p := NewPlanner()
	chunks, speech := p.Plan(nil, 10)
	assert.Nil(t, chunks)
	assert.Nil(t, speech)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5, 0, 10))
	assert.Equal(t, 10.0, clamp(15, 0, 10))
	assert.Equal(t, 5.0, clamp(5, 0, 10))
}
