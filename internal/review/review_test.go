package review

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/capability"
	"dubcore/internal/model"
)

type fakeLLM struct {
	complete func(ctx context.Context, req capability.LLMRequest) (string, error)
}

func (f *fakeLLM) Complete(ctx context.Context, req capability.LLMRequest) (string, error) {
	return f.complete(ctx, req)
}

func TestParseReviewLines_DetectsDuplicates(t *testing.T) {
	resp := "@@SUB_LINE@@ 1: hola\n@@SUB_LINE@@ 2: mundo\n@@SUB_LINE@@ 1: otra vez\n"
	out, dup := parseReviewLines(resp)

	assert.True(t, dup)
	assert.Equal(t, "hola", out[1])
	assert.Equal(t, "mundo", out[2])
}

func TestParseReviewLines_NoDuplicates(t *testing.T) {
	resp := "@@SUB_LINE@@ 1: hola\n@@SUB_LINE@@ 2: mundo\n"
	out, dup := parseReviewLines(resp)

	assert.False(t, dup)
	assert.Len(t, out, 2)
}

func TestCountInRange(t *testing.T) {
	parsed := map[int]string{1: "a", 2: "b", 5: "c"}
	assert.Equal(t, 2, countInRange(parsed, 0, 2))
	assert.Equal(t, 3, countInRange(parsed, 0, 5))
}

func TestApplyBatch_NewerBatchWins(t *testing.T) {
	segments := []model.Segment{
		{Translation: "old0", ReviewedInBatch: -1},
		{Translation: "old1", ReviewedInBatch: -1},
	}

	// First, an earlier batch starting at 0 claims both segments.
	applyBatch(segments, 0, 2, map[int]string{1: "batch0-seg0", 2: "batch0-seg1"})
	assert.Equal(t, "batch0-seg0", segments[0].Translation)
	assert.Equal(t, 0, segments[0].ReviewedInBatch)

	// A later batch starting at 1 overlaps index 1 (absolute) and should win there.
	applyBatch(segments, 1, 2, map[int]string{2: "batch1-seg1"})
	assert.Equal(t, "batch1-seg1", segments[1].Translation)
	assert.Equal(t, 1, segments[1].ReviewedInBatch)

	// An older batch (start=0) replaying over index 1 must NOT win anymore.
	applyBatch(segments, 0, 2, map[int]string{2: "stale-rewrite"})
	assert.Equal(t, "batch1-seg1", segments[1].Translation)
}

func TestReviewBatch_RejectsOnDuplicateIndices(t *testing.T) {
	segments := []model.Segment{{Original: "a", Translation: "a-draft"}, {Original: "b", Translation: "b-draft"}}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "@@SUB_LINE@@ 1: x\n@@SUB_LINE@@ 1: y\n@@SUB_LINE@@ 2: z\n", nil
	}}
	r := NewReviewer(llm)

	_, ok := r.reviewBatch(context.Background(), "op1", segments, 0, 2, "fr")
	assert.False(t, ok)
}

func TestReviewBatch_RejectsOnLowCoverage(t *testing.T) {
	segments := make([]model.Segment, 10)
	for i := range segments {
		segments[i] = model.Segment{Original: fmt.Sprintf("s%d", i), Translation: fmt.Sprintf("d%d", i)}
	}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		// Only one of ten lines answered: coverage 0.10 << ReviewMinCoverage(0.90).
		return "@@SUB_LINE@@ 1: only-one\n", nil
	}}
	r := NewReviewer(llm)

	_, ok := r.reviewBatch(context.Background(), "op1", segments, 0, 10, "fr")
	assert.False(t, ok)
}

func TestReviewBatch_AcceptsFullCoverage(t *testing.T) {
	segments := []model.Segment{
		{Original: "a", Translation: "a-draft"},
		{Original: "b", Translation: "b-draft"},
	}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "@@SUB_LINE@@ 1: a-revised\n@@SUB_LINE@@ 2: b-revised\n", nil
	}}
	r := NewReviewer(llm)

	out, ok := r.reviewBatch(context.Background(), "op1", segments, 0, 2, "fr")
	assert.True(t, ok)
	assert.Equal(t, "a-revised", out[1])
	assert.Equal(t, "b-revised", out[2])
}

func TestReviewBatch_KeepsDraftOnLLMError(t *testing.T) {
	segments := []model.Segment{{Original: "a", Translation: "a-draft"}}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "", fmt.Errorf("provider unavailable")
	}}
	r := NewReviewer(llm)

	_, ok := r.reviewBatch(context.Background(), "op1", segments, 0, 1, "fr")
	assert.False(t, ok)
}

func TestReview_AppliesAcceptedBatchAndReportsProgress(t *testing.T) {
	segments := []model.Segment{
		{Original: "a", Translation: "a-draft"},
		{Original: "b", Translation: "b-draft"},
		{Original: "c", Translation: "c-draft"},
	}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "@@SUB_LINE@@ 1: a-rev\n@@SUB_LINE@@ 2: b-rev\n@@SUB_LINE@@ 3: c-rev\n", nil
	}}
	r := NewReviewer(llm)

	var events []model.ProgressEvent
	out := r.Review(context.Background(), "op1", segments, "fr", 75, 95, func(ev model.ProgressEvent) {
		events = append(events, ev)
	})

	assert.Equal(t, "a-rev", out[0].Translation)
	assert.Equal(t, "b-rev", out[1].Translation)
	assert.Equal(t, "c-rev", out[2].Translation)
	if assert.NotEmpty(t, events) {
		assert.Equal(t, 95, events[len(events)-1].Percent)
	}
}

func TestReview_EmptyInput(t *testing.T) {
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		t.Fatal("LLM should not be called for empty input")
		return "", nil
	}}
	r := NewReviewer(llm)
	out := r.Review(context.Background(), "op1", nil, "fr", 75, 95, nil)
	assert.Empty(t, out)
}

func TestScalePercent(t *testing.T) {
	assert.Equal(t, 75, scalePercent(0, 10, 75, 95))
	assert.Equal(t, 95, scalePercent(10, 10, 75, 95))
	assert.Equal(t, 95, scalePercent(0, 0, 75, 95))
}
