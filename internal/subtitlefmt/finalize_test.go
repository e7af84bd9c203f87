package subtitlefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/model"
)

func seg(start, end float64, text string) model.Segment {
	return model.Segment{Start: start, End: end, Original: text}
}

func TestFinalize_FusesShortOrphanIntoPrevious(t *testing.T) {
	segments := []model.Segment{
		seg(0, 2, "hello there friend"),
		seg(2.1, 2.5, "yes"), // 1 word, gap 0.1s < MaxGapToFuseSec(0.3)
	}

	out := Finalize(segments)

	if assert.Len(t, out, 1) {
		assert.Equal(t, "hello there friend yes", out[0].Original)
		assert.Equal(t, 2.5, out[0].End)
		assert.Equal(t, 1, out[0].Index)
	}
}

func TestFinalize_DoesNotFuseWhenGapTooLarge(t *testing.T) {
	segments := []model.Segment{
		seg(0, 2, "hello there friend"),
		seg(3, 3.5, "yes"), // gap 1s >= MaxGapToFuseSec(0.3)
	}

	out := Finalize(segments)

	assert.Len(t, out, 2)
}

func TestFinalize_DoesNotFuseLongSegments(t *testing.T) {
	segments := []model.Segment{
		seg(0, 2, "hello there friend"),
		seg(2.1, 3, "this has five words"), // >= OrphanMinWords(4)
	}

	out := Finalize(segments)

	assert.Len(t, out, 2)
}

func TestFinalize_ExtendsShortGapsClosingDeadAir(t *testing.T) {
	segments := []model.Segment{
		seg(0, 2, "one two three four"),
		seg(4, 6, "five six seven eight"), // gap 2s < SubtitleGapThresholdSec(5)
	}

	out := Finalize(segments)

	if assert.Len(t, out, 2) {
		assert.Equal(t, 4.0, out[0].End) // extended to close the gap
		assert.Equal(t, 4.0, out[1].Start)
	}
}

func TestFinalize_LeavesLongGapsAlone(t *testing.T) {
	segments := []model.Segment{
		seg(0, 2, "one two three four"),
		seg(10, 12, "five six seven eight"), // gap 8s >= SubtitleGapThresholdSec(5)
	}

	out := Finalize(segments)

	assert.Equal(t, 2.0, out[0].End)
}

func TestFinalize_ReindexesDenselyFromOne(t *testing.T) {
	segments := []model.Segment{
		seg(0, 1, "one two three four five"),
		seg(10, 11, "one two three four five"),
		seg(20, 21, "one two three four five"),
	}

	out := Finalize(segments)

	for i, s := range out {
		assert.Equal(t, i+1, s.Index)
	}
}

func TestFinalize_EmptyInput(t *testing.T) {
	assert.Empty(t, Finalize(nil))
}
