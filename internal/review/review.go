// Package review implements C7, the Review Pass: an overlapping sliding
// window that asks the model to rewrite draft translations in place while
// strictly preserving line count and order. Grounded on
// anilpdv-video-dubber's services/translator.go batching shape (reused
// from C6) but with review's own parser contract and "newest batch wins"
// overlap-conflict rule (spec §4.6).
package review

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/logger"
	"dubcore/internal/model"
)

// Reviewer implements review(segments, target_language, cancel, progress).
// Unlike the Translator it runs its sliding window sequentially: each step
// overlaps the previous one by ReviewOverlapCtx segments, and the "newest
// batch wins" rule (spec §4.6) depends on batches being applied in
// ascending start-index order.
type Reviewer struct {
	llm capability.LLM
}

func NewReviewer(llm capability.LLM) *Reviewer {
	return &Reviewer{llm: llm}
}

// Review mutates a copy of segments' Translation fields, returning it.
// bandStart/bandEnd are the progress percentages this stage spans (spec
// §4.9: 75-95 when translation precedes it).
func (r *Reviewer) Review(ctx context.Context, opID string, segments []model.Segment, targetLanguage string, bandStart, bandEnd int, progress model.ProgressFunc) []model.Segment {
	if progress == nil {
		progress = model.NoopProgress
	}
	out := append([]model.Segment(nil), segments...)
	if len(out) == 0 {
		return out
	}
	for i := range out {
		out[i].ReviewedInBatch = -1 // sentinel: distinguishes "never reviewed" from batch start 0
	}

	total := len(out)
	for start := 0; start < len(out); start += config.ReviewStep {
		if ctx.Err() != nil {
			break
		}
		end := start + config.ReviewBatchSize
		if end > len(out) {
			end = len(out)
		}

		rewritten, ok := r.reviewBatch(ctx, opID, out, start, end, targetLanguage)
		if ok {
			applyBatch(out, start, end, rewritten)
		}

		done := end
		progress(model.ProgressEvent{
			Percent: scalePercent(done, total, bandStart, bandEnd), Stage: "review",
			Current: done, Total: total, HasCurrentTotal: true,
		})

		if end == len(out) {
			break
		}
	}

	return out
}

// applyBatch implements spec §4.6's conflict rule: a segment's translation
// is overwritten only when the current batch's start index exceeds the
// segment's ReviewedInBatch marker, so a later-starting (and therefore
// "newer") overlapping batch always wins.
func applyBatch(segments []model.Segment, start, end int, rewritten map[int]string) {
	for absIdx, text := range rewritten {
		i := absIdx - 1
		if i < start || i >= end || i < 0 || i >= len(segments) {
			continue
		}
		if start <= segments[i].ReviewedInBatch {
			continue
		}
		segments[i].Translation = text
		segments[i].HasTranslation = true
		segments[i].ReviewedInBatch = start
	}
}

// reviewBatch implements spec §4.6's prompt contract and rejection rule:
// the batch is rejected (keeping the draft) when duplicate indices appear
// in the response or coverage drops below ReviewMinCoverage of the
// requested indices.
func (r *Reviewer) reviewBatch(ctx context.Context, opID string, segments []model.Segment, start, end int, targetLanguage string) (map[int]string, bool) {
	window := segments[start:end]
	prompt := buildReviewPrompt(segments, start, end, targetLanguage)

	resp, err := r.llm.Complete(ctx, capability.LLMRequest{
		Messages: []capability.LLMMessage{
			{Role: "system", Content: reviewSystemPrompt(targetLanguage)},
			{Role: "user", Content: prompt},
		},
		MaxTokens: 4096,
	})
	if err != nil {
		logger.WithOp(opID).Warn("review batch failed, keeping draft", "error", err, "batch_start", start, "batch_end", end)
		return nil, false
	}

	parsed, dup := parseReviewLines(resp)
	if dup {
		logger.WithOp(opID).Warn("review batch rejected: duplicate indices, keeping draft", "batch_start", start, "batch_end", end)
		return nil, false
	}

	coverage := float64(countInRange(parsed, start, end)) / float64(len(window))
	if coverage < config.ReviewMinCoverage {
		logger.WithOp(opID).Warn("review batch rejected: insufficient coverage, keeping draft",
			"batch_start", start, "batch_end", end, "coverage", coverage)
		return nil, false
	}

	return parsed, true
}

func reviewSystemPrompt(targetLanguage string) string {
	return fmt.Sprintf(
		"You are a subtitle editor refining draft %s translations. You are given source lines, "+
			"draft translations, and context from surrounding lines. Improve fluency and accuracy only. "+
			"You MUST preserve line count and order exactly: no merging, splitting, reordering, "+
			"additions, or deletions. For every line output exactly one line formatted as "+
			"\"@@SUB_LINE@@ <absolute_index>: <revised text>\".",
		targetLanguage,
	)
}

func buildReviewPrompt(segments []model.Segment, start, end int, targetLanguage string) string {
	ctxBefore := start - config.ReviewOverlapCtx
	if ctxBefore < 0 {
		ctxBefore = 0
	}
	ctxAfter := end + config.ReviewOverlapCtx
	if ctxAfter > len(segments) {
		ctxAfter = len(segments)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n", targetLanguage)

	if ctxBefore < start {
		b.WriteString("Context before (source only, do not output):\n")
		for i := ctxBefore; i < start; i++ {
			fmt.Fprintf(&b, "%d: %s\n", i+1, segments[i].Original)
		}
	}

	b.WriteString("Lines to review (source / draft):\n")
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%d source: %s\n%d draft: %s\n", i+1, segments[i].Original, i+1, segments[i].Translation)
	}

	if end < ctxAfter {
		b.WriteString("Context after (source only, do not output):\n")
		for i := end; i < ctxAfter; i++ {
			fmt.Fprintf(&b, "%d: %s\n", i+1, segments[i].Original)
		}
	}
	return b.String()
}

var subLineRe = regexp.MustCompile(`(?im)^\s*@@SUB_LINE@@\s*(\d+)\s*:\s*(.*)$`)

// parseReviewLines maps line-id -> text via the fixed @@SUB_LINE@@ regex
// (spec §4.6), reporting whether any index appeared more than once.
func parseReviewLines(resp string) (map[int]string, bool) {
	out := make(map[int]string)
	seen := make(map[int]bool)
	dup := false
	for _, m := range subLineRe.FindAllStringSubmatch(resp, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if seen[idx] {
			dup = true
			continue
		}
		seen[idx] = true
		out[idx] = strings.TrimSpace(m[2])
	}
	return out, dup
}

func countInRange(parsed map[int]string, start, end int) int {
	n := 0
	for idx := range parsed {
		if idx-1 >= start && idx-1 < end {
			n++
		}
	}
	return n
}

func scalePercent(done, total, bandStart, bandEnd int) int {
	if total == 0 {
		return bandEnd
	}
	span := bandEnd - bandStart
	return bandStart + done*span/total
}
