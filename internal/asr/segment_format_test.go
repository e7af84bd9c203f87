package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/capability"
)

func TestFormSegments_NoWords_FallsBackToASRSegmentsVerbatim(t *testing.T) {
	result := capability.ASRResult{
		Segments: []capability.ASRSegment{
			{Start: 0, End: 2, Text: " hello there "},
			{Start: 2, End: 3, Text: ""},
			{Start: 3, End: 4, Text: "world"},
		},
	}

	segs := FormSegments(result, 10)

	if assert.Len(t, segs, 2) {
		assert.Equal(t, "hello there", segs[0].Original)
		assert.Equal(t, 10.0, segs[0].Start)
		assert.Equal(t, 12.0, segs[0].End)
		assert.Equal(t, "world", segs[1].Original)
	}
}

func TestFormSegments_WordMode_FiltersLowQualitySegment(t *testing.T) {
	result := capability.ASRResult{
		Segments: []capability.ASRSegment{
			{Start: 0, End: 1, HasScores: true, AvgLogprob: -1, NoSpeechProb: 0.1},
			{Start: 1, End: 2, HasScores: true, AvgLogprob: -1, NoSpeechProb: 0.95}, // filtered: NoSpeechProb too high
		},
		Words: []capability.ASRWord{
			{Text: "keep", Start: 0.1, End: 0.5},
			{Text: "this", Start: 0.5, End: 0.9},
			{Text: "dropped", Start: 1.1, End: 1.5},
		},
	}

	segs := FormSegments(result, 0)

	for _, s := range segs {
		assert.NotContains(t, s.Original, "dropped")
	}
}

func TestGroupWords_HardBoundaryEndsSegmentRegardlessOfMinWords(t *testing.T) {
	result := capability.ASRResult{
		Segments: []capability.ASRSegment{
			{Start: 0, End: 1},
			{Start: 1, End: 2},
		},
		Words: []capability.ASRWord{
			{Text: "hi", Start: 0.1, End: 0.5}, // alone in segment 0: below SegmentMinWords(3) but hard boundary forces a cut
			{Text: "second", Start: 1.1, End: 1.3},
			{Text: "segment", Start: 1.3, End: 1.6},
			{Text: "words", Start: 1.6, End: 1.9},
		},
	}

	segs := FormSegments(result, 0)

	if assert.Len(t, segs, 2) {
		assert.Equal(t, "hi", segs[0].Original)
		assert.Equal(t, "second segment words", segs[1].Original)
	}
}

func TestBuildCaption_AttachesLeadingPunctuationWithoutSpace(t *testing.T) {
	words := []wordWithSeg{
		{ASRWord: capability.ASRWord{Text: "Hello", Start: 0, End: 0.5}, segIndex: 0},
		{ASRWord: capability.ASRWord{Text: ",", Start: 0.5, End: 0.6}, segIndex: 0},
		{ASRWord: capability.ASRWord{Text: "world", Start: 0.6, End: 1.0}, segIndex: 0},
	}

	seg := buildCaption(words, 0)

	assert.Equal(t, "Hello, world", seg.Original)
}
