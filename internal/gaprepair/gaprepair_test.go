package gaprepair

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/capability"
	"dubcore/internal/model"
)

func segAt(start, end float64) model.Segment {
	return model.Segment{Start: start, End: end, Original: "text"}
}

func TestIdentifyGaps_InterSegmentGap(t *testing.T) {
	segments := []model.Segment{segAt(0, 2), segAt(6, 8)} // 4s gap >= GapSec(3.0)
	speech := []model.Interval{{Start: 0, End: 8}}

	gaps := IdentifyGaps(segments, speech, 10)

	if assert.NotEmpty(t, gaps) {
		assert.Equal(t, 2.0, gaps[0].Start)
		assert.Equal(t, 6.0, gaps[0].End)
	}
}

func TestIdentifyGaps_NoGapBelowThreshold(t *testing.T) {
	segments := []model.Segment{segAt(0, 2), segAt(3, 5)} // 1s gap < GapSec(3.0)
	speech := []model.Interval{{Start: 0, End: 5}}

	gaps := IdentifyGaps(segments, speech, 5)
	assert.Empty(t, gaps)
}

func TestIdentifyGaps_SanityScanCatchesUncoveredSpeech(t *testing.T) {
	// No segments at all, but VAD found 5s of continuous speech.
	speech := []model.Interval{{Start: 0, End: 5}}
	gaps := IdentifyGaps(nil, speech, 5)

	if assert.Len(t, gaps, 1) {
		assert.Equal(t, 0.0, gaps[0].Start)
		assert.Equal(t, 5.0, gaps[0].End)
	}
}

func TestDedupeGaps_MergesOverlappingAndAdjacent(t *testing.T) {
	gaps := []model.RepairGap{
		{Interval: model.Interval{Start: 10, End: 15}},
		{Interval: model.Interval{Start: 0, End: 5}},
		{Interval: model.Interval{Start: 5.005, End: 8}}, // within GapDedupeMergeSlackSec(0.01) of prior end
	}

	out := dedupeGaps(gaps)

	if assert.Len(t, out, 2) {
		assert.Equal(t, 0.0, out[0].Start)
		assert.Equal(t, 8.0, out[0].End)
		assert.Equal(t, 10.0, out[1].Start)
	}
}

func TestDedupeGaps_Empty(t *testing.T) {
	assert.Nil(t, dedupeGaps(nil))
}

func TestNeighborContext_TakesThreeBeforeAndAfter(t *testing.T) {
	segs := []model.Segment{
		segAt(0, 1), segAt(1, 2), segAt(2, 3), segAt(3, 4),
		segAt(10, 11), segAt(11, 12), segAt(12, 13), segAt(13, 14),
	}
	for i := range segs {
		segs[i].Original = "word"
	}
	gap := model.Interval{Start: 4, End: 10}

	ctx := neighborContext(gap, segs)
	assert.Equal(t, "word word word word word word", ctx) // 3 before + 3 after, not all 8
}

func TestTruncateWords_TruncatesLongText(t *testing.T) {
	text := "one two three four five"
	assert.Equal(t, "one two three", truncateWords(text, 3))
	assert.Equal(t, text, truncateWords(text, 10))
}

func TestFormAndClip_ClipsToGapBounds(t *testing.T) {
	gap := model.Interval{Start: 2, End: 6}
	result := capability.ASRResult{
		Segments: []capability.ASRSegment{
			{Start: -1, End: 1, Text: "overlaps gap start"}, // offset by gap.Start(2) -> spans 1..3, clipped to 2..3
			{Start: 0, End: 5, Text: "overlaps gap end"},    // offset -> spans 2..7, clipped to 2..6
		},
	}

	segs := formAndClip(result, gap)

	for _, s := range segs {
		assert.GreaterOrEqual(t, s.Start, gap.Start)
		assert.LessOrEqual(t, s.End, gap.End)
	}
}
