// Package translate implements C6, the Translator: batched LLM translation
// with prior/following source-language context windows and exponential
// backoff. Grounded on anilpdv-video-dubber's services/translator.go
// (numbered-line prompt contract, fallback-to-original-on-failure stance)
// generalized onto github.com/cenkalti/backoff/v4 for the retry loop and
// a dedicated worker.SharedPool (spec §5: "the Translator owns a smaller
// pool, default 4") instead of the ASR/Gap Repair pool.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/logger"
	"dubcore/internal/model"
	"dubcore/internal/worker"
)

// Translator implements translate(segments, target_language, cancel, progress).
type Translator struct {
	llm  capability.LLM
	pool *worker.SharedPool
}

func NewTranslator(llm capability.LLM, pool *worker.SharedPool) *Translator {
	return &Translator{llm: llm, pool: pool}
}

// Translate mutates a copy of segments in place, filling Translation and
// HasTranslation, and returns it. Batches run concurrently on the
// Translator's own pool; within a batch, a line identical to its source is
// "redundant" and inherits the previous non-empty translation (spec §4.5).
// bandStart/bandEnd are the progress percentages this stage spans, since
// spec §4.9 assigns the Translator a different band depending on whether a
// Review Pass follows (50-75 with review, 50-95 without).
func (t *Translator) Translate(ctx context.Context, opID string, segments []model.Segment, targetLanguage string, bandStart, bandEnd int, progress model.ProgressFunc) []model.Segment {
	if progress == nil {
		progress = model.NoopProgress
	}
	out := append([]model.Segment(nil), segments...)
	if len(out) == 0 {
		return out
	}

	total := len(out)
	done := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for start := 0; start < len(out); start += config.TranslationBatchSize {
		end := start + config.TranslationBatchSize
		if end > len(out) {
			end = len(out)
		}
		start, end := start, end

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := t.pool.Acquire(ctx); err != nil {
				return
			}
			defer t.pool.Release()

			translations := t.translateBatch(ctx, opID, out, start, end, targetLanguage)

			mu.Lock()
			applyBatch(out, start, end, translations)
			done += end - start
			progress(model.ProgressEvent{
				Percent: scalePercent(done, total, bandStart, bandEnd), Stage: "translate",
				Current: done, Total: total, HasCurrentTotal: true,
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	return out
}

// translateBatch implements spec §4.5's retry policy: up to
// TranslationMaxRetries attempts with exponential backoff (1s x 2^attempt,
// capped), silently falling back to the originals when exhausted so the
// pipeline can continue.
func (t *Translator) translateBatch(ctx context.Context, opID string, segments []model.Segment, start, end int, targetLanguage string) []string {
	window := segments[start:end]
	prompt := buildPrompt(segments, start, end, targetLanguage)

	var parsed map[int]string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := t.llm.Complete(ctx, capability.LLMRequest{
			Messages: []capability.LLMMessage{
				{Role: "system", Content: fmt.Sprintf(
					"You are a subtitle translator. Translate each numbered line into %s. "+
						"Reply with exactly one line per input line, each prefixed \"Line N:\" "+
						"where N is the absolute index given. Do not merge, split, or reorder lines.",
					targetLanguage)},
				{Role: "user", Content: prompt},
			},
			MaxTokens: 4096,
		})
		if err != nil {
			return err
		}
		parsed = parseLines(resp)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.TranslationBackoffBase
	b.Multiplier = 2
	// WithMaxRetries counts retries after the first call, so N attempts is N-1 retries.
	bctx := backoff.WithContext(backoff.WithMaxRetries(b, config.TranslationMaxRetries-1), ctx)

	if err := backoff.Retry(op, bctx); err != nil {
		logger.WithOp(opID).Warn("translation batch exhausted retries, falling back to originals",
			"error", err, "batch_start", start, "batch_end", end)
		parsed = nil
	}

	out := make([]string, len(window))
	prevNonEmpty := ""
	for i, seg := range window {
		absIdx := start + i + 1
		text, ok := parsed[absIdx]
		if !ok {
			out[i] = seg.Original // silent fallback (spec §4.5, §7 TranslationBatchFailed)
			continue
		}
		if strings.TrimSpace(text) == strings.TrimSpace(seg.Original) {
			out[i] = prevNonEmpty // redundant line inherits previous translation
			continue
		}
		out[i] = text
		if strings.TrimSpace(text) != "" {
			prevNonEmpty = text
		}
	}
	return out
}

// buildPrompt implements spec §4.5's fused prompt: up to TranslationContextN
// original-language segments immediately before and after the window as
// context, plus the window's lines numbered by absolute segment index.
func buildPrompt(segments []model.Segment, start, end int, targetLanguage string) string {
	ctxBefore := start - config.TranslationContextN
	if ctxBefore < 0 {
		ctxBefore = 0
	}
	ctxAfter := end + config.TranslationContextN
	if ctxAfter > len(segments) {
		ctxAfter = len(segments)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n", targetLanguage)

	if ctxBefore < start {
		b.WriteString("Context before (do not translate):\n")
		for i := ctxBefore; i < start; i++ {
			fmt.Fprintf(&b, "%d: %s\n", i+1, segments[i].Original)
		}
	}
	b.WriteString("Lines to translate:\n")
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "Line %d: %s\n", i+1, segments[i].Original)
	}
	if end < ctxAfter {
		b.WriteString("Context after (do not translate):\n")
		for i := end; i < ctxAfter; i++ {
			fmt.Fprintf(&b, "%d: %s\n", i+1, segments[i].Original)
		}
	}
	return b.String()
}

var lineRe = regexp.MustCompile(`(?im)^\s*Line\s+(\d+)\s*:\s*(.*)$`)

// parseLines implements "parsing accepts the first match per index" (spec
// §4.5).
func parseLines(resp string) map[int]string {
	out := make(map[int]string)
	for _, m := range lineRe.FindAllStringSubmatch(resp, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := out[idx]; seen {
			continue
		}
		out[idx] = strings.TrimSpace(m[2])
	}
	return out
}

func applyBatch(segments []model.Segment, start, end int, translations []string) {
	for i := start; i < end; i++ {
		segments[i].Translation = translations[i-start]
		segments[i].HasTranslation = true
	}
}

func scalePercent(done, total, bandStart, bandEnd int) int {
	if total == 0 {
		return bandEnd
	}
	span := bandEnd - bandStart
	return bandStart + done*span/total
}
