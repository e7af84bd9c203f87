package translate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/capability"
	"dubcore/internal/model"
	"dubcore/internal/worker"
)

// fakeLLM answers Complete with a caller-supplied function, so each test
// controls exactly what the translator parses back.
type fakeLLM struct {
	complete func(ctx context.Context, req capability.LLMRequest) (string, error)
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, req capability.LLMRequest) (string, error) {
	f.calls++
	return f.complete(ctx, req)
}

func TestParseLines_FirstMatchWinsPerIndex(t *testing.T) {
	resp := "Line 1: Hola\nLine 2: Mundo\nLine 1: duplicate ignored\n"
	out := parseLines(resp)

	assert.Equal(t, "Hola", out[1])
	assert.Equal(t, "Mundo", out[2])
	assert.Len(t, out, 2)
}

func TestBuildPrompt_IncludesContextWindowsAroundBatch(t *testing.T) {
	segments := make([]model.Segment, 20)
	for i := range segments {
		segments[i] = model.Segment{Original: fmt.Sprintf("seg%d", i)}
	}

	prompt := buildPrompt(segments, 10, 12, "fr")

	assert.Contains(t, prompt, "Context before")
	assert.Contains(t, prompt, "Context after")
	assert.Contains(t, prompt, "Line 11: seg10")
	assert.Contains(t, prompt, "Line 12: seg11")
}

func TestTranslate_RedundantLineInheritsPreviousTranslation(t *testing.T) {
	segments := []model.Segment{
		{Original: "hello"},
		{Original: "same text"},
		{Original: "same text"}, // LLM echoes this one back untranslated -> redundant
	}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "Line 1: bonjour\nLine 2: meme texte\nLine 3: same text\n", nil
	}}
	pool := worker.NewSharedPool(2)
	tr := NewTranslator(llm, pool)

	out := tr.Translate(context.Background(), "op1", segments, "fr", 50, 95, nil)

	assert.Equal(t, "bonjour", out[0].Translation)
	assert.Equal(t, "meme texte", out[1].Translation)
	assert.Equal(t, "meme texte", out[2].Translation) // inherited, not "same text"
	for _, s := range out {
		assert.True(t, s.HasTranslation)
	}
}

func TestTranslate_FallsBackToOriginalOnMissingLine(t *testing.T) {
	segments := []model.Segment{{Original: "only one line"}}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "nothing parseable here", nil
	}}
	pool := worker.NewSharedPool(1)
	tr := NewTranslator(llm, pool)

	out := tr.Translate(context.Background(), "op1", segments, "fr", 50, 95, nil)

	assert.Equal(t, "only one line", out[0].Translation)
	assert.True(t, out[0].HasTranslation)
}

func TestTranslate_EmptyInput(t *testing.T) {
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		t.Fatal("LLM should not be called for empty input")
		return "", nil
	}}
	tr := NewTranslator(llm, worker.NewSharedPool(1))
	out := tr.Translate(context.Background(), "op1", nil, "fr", 50, 95, nil)
	assert.Empty(t, out)
}

func TestScalePercent(t *testing.T) {
	assert.Equal(t, 50, scalePercent(0, 10, 50, 95))
	assert.Equal(t, 95, scalePercent(10, 10, 50, 95))
	assert.Equal(t, 95, scalePercent(0, 0, 50, 95))
}

func TestApplyBatch_SetsTranslationAndFlag(t *testing.T) {
	segments := []model.Segment{{Original: "a"}, {Original: "b"}}
	applyBatch(segments, 0, 2, []string{"x", "y"})

	assert.Equal(t, "x", segments[0].Translation)
	assert.Equal(t, "y", segments[1].Translation)
	assert.True(t, segments[0].HasTranslation && segments[1].HasTranslation)
}

func TestTranslateBatch_FallsBackAfterRetriesExhausted(t *testing.T) {
	segments := []model.Segment{{Original: "hi"}}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "", fmt.Errorf("provider down")
	}}
	tr := NewTranslator(llm, worker.NewSharedPool(1))

	out := tr.translateBatch(context.Background(), "op1", segments, 0, 1, "fr")

	assert.Equal(t, []string{"hi"}, out)
	assert.Greater(t, llm.calls, 1) // retried at least once before falling back
}

func TestTranslate_SkipsBlankOriginalGracefully(t *testing.T) {
	segments := []model.Segment{{Original: ""}}
	llm := &fakeLLM{complete: func(ctx context.Context, req capability.LLMRequest) (string, error) {
		return "Line 1: \n", nil
	}}
	tr := NewTranslator(llm, worker.NewSharedPool(1))
	out := tr.Translate(context.Background(), "op1", segments, "fr", 50, 95, nil)
	assert.True(t, strings.TrimSpace(out[0].Translation) == "")
}
