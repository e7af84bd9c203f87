// Package gaprepair implements C5: identifies caption coverage gaps
// against VAD speech intervals and iteratively re-transcribes them with
// localized context. Grounded on anilpdv-video-dubber's retry/backoff
// shape (services/translator.go's OpenAI retry loop generalized here via
// cenkalti/backoff/v4) and the same worker.SharedPool C3 uses (spec §5:
// "shared by the ASR orchestrator and Gap Repair Engine").
package gaprepair

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"dubcore/internal/asr"
	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/logger"
	"dubcore/internal/media"
	"dubcore/internal/model"
	"dubcore/internal/pipeerr"
	"dubcore/internal/worker"
)

type Engine struct {
	asr     capability.ASR
	media   *media.Service
	pool    *worker.SharedPool
	tempDir string
}

func NewEngine(asrCap capability.ASR, mediaSvc *media.Service, pool *worker.SharedPool, tempDir string) *Engine {
	return &Engine{asr: asrCap, media: mediaSvc, pool: pool, tempDir: tempDir}
}

// Repair implements C5's public operation: overshoot refinement, then up
// to MaxGapRepairIterations passes of gap-identification + localized
// re-transcription, appending to (never mutating in place) the running
// segment sequence.
func (e *Engine) Repair(ctx context.Context, opID, audioPath string, segments []model.Segment, speech []model.Interval, mediaDuration float64, progress model.ProgressFunc) []model.Segment {
	if progress == nil {
		progress = model.NoopProgress
	}

	segments = e.refineOvershoots(ctx, opID, audioPath, segments, mediaDuration)

	for iter := 0; iter < config.MaxGapRepairIterations; iter++ {
		if ctx.Err() != nil {
			return segments
		}

		gaps := IdentifyGaps(segments, speech, mediaDuration)
		if len(gaps) == 0 {
			break
		}
		sort.Slice(gaps, func(i, j int) bool { return gaps[i].Duration() < gaps[j].Duration() })

		snapshot := append([]model.Segment(nil), segments...)
		newSegs := e.repairPass(ctx, opID, audioPath, gaps, snapshot, progress)
		if len(newSegs) == 0 {
			break
		}
		segments = append(segments, newSegs...)
		sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	}

	return segments
}

// IdentifyGaps combines inter-segment gaps and a sanity scan over VAD
// speech intervals (spec §4.4), then dedupes by merging gaps whose start
// is within GapDedupeMergeSlackSec of the previous gap's end.
func IdentifyGaps(segments []model.Segment, speech []model.Interval, mediaDuration float64) []model.RepairGap {
	var gaps []model.RepairGap

	for i := 1; i < len(segments); i++ {
		if segments[i].Start-segments[i-1].End >= config.GapSec {
			gaps = append(gaps, model.RepairGap{Interval: model.Interval{Start: segments[i-1].End, End: segments[i].Start}})
		}
	}

	for _, iv := range speech {
		gaps = append(gaps, sanityScanInterval(iv, segments)...)
	}

	return dedupeGaps(gaps)
}

// sanityScanInterval walks the subset of segments overlapping iv and
// reports uncovered sub-ranges of length >= GapSec.
func sanityScanInterval(iv model.Interval, segments []model.Segment) []model.RepairGap {
	cursor := iv.Start
	var gaps []model.RepairGap
	for _, seg := range segments {
		if seg.End <= iv.Start || seg.Start >= iv.End {
			continue
		}
		segStart := seg.Start
		if segStart < iv.Start {
			segStart = iv.Start
		}
		if segStart-cursor >= config.GapSec {
			gaps = append(gaps, model.RepairGap{Interval: model.Interval{Start: cursor, End: segStart}})
		}
		segEnd := seg.End
		if segEnd > iv.End {
			segEnd = iv.End
		}
		if segEnd > cursor {
			cursor = segEnd
		}
	}
	if iv.End-cursor >= config.GapSec {
		gaps = append(gaps, model.RepairGap{Interval: model.Interval{Start: cursor, End: iv.End}})
	}
	return gaps
}

func dedupeGaps(gaps []model.RepairGap) []model.RepairGap {
	if len(gaps) == 0 {
		return nil
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Start < gaps[j].Start })

	out := []model.RepairGap{gaps[0]}
	for _, g := range gaps[1:] {
		last := &out[len(out)-1]
		if g.Start <= last.End+config.GapDedupeMergeSlackSec {
			if g.End > last.End {
				last.End = g.End
			}
			continue
		}
		out = append(out, g)
	}
	return out
}

func (e *Engine) repairPass(ctx context.Context, opID, audioPath string, gaps []model.RepairGap, contextSegs []model.Segment, progress model.ProgressFunc) []model.Segment {
	results := make([][]model.Segment, len(gaps))
	var wg sync.WaitGroup

	for i, gap := range gaps {
		i, gap := i, gap
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.pool.Acquire(ctx); err != nil {
				return
			}
			defer e.pool.Release()

			segs, err := e.repairGap(ctx, opID, audioPath, gap, contextSegs)
			if err != nil {
				if pipeerr.IsCancelled(err) {
					return
				}
				logger.WithOp(opID).Warn("gap repair failed", "error", err, "gap_start", gap.Start, "gap_end", gap.End)
				progress(model.ProgressEvent{Percent: -1, Stage: "gap-repair-failed", Error: err.Error()})
				return
			}
			results[i] = segs
		}()
	}
	wg.Wait()

	var out []model.Segment
	for _, segs := range results {
		out = append(out, segs...)
	}
	return out
}

func (e *Engine) repairGap(ctx context.Context, opID, audioPath string, gap model.RepairGap, contextSegs []model.Segment) ([]model.Segment, error) {
	clipPath := filepath.Join(e.tempDir, fmt.Sprintf("gap_%s_%.3f.wav", opID, gap.Start))
	if err := e.media.ExtractSegment(ctx, opID, audioPath, clipPath, gap.Start, gap.Duration()); err != nil {
		return nil, pipeerr.New(pipeerr.ASRChunkFailed, opID, "extract-gap", err)
	}

	promptContext := neighborContext(gap.Interval, contextSegs)

	var result capability.ASRResult
	op := func() error {
		r, err := e.asr.Transcribe(ctx, clipPath, promptContext)
		if err != nil {
			return err
		}
		result = r
		return nil
	}
	boff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, boff); err != nil {
		return nil, pipeerr.New(pipeerr.ASRChunkFailed, opID, "repair-gap", err)
	}

	segs := formAndClip(result, gap.Interval)
	return segs, nil
}

// neighborContext implements spec §4.4's "short prompt from the 3
// neighbors before and 3 after (each truncated to ~40 words)".
func neighborContext(gap model.Interval, contextSegs []model.Segment) string {
	idx := sort.Search(len(contextSegs), func(i int) bool { return contextSegs[i].Start >= gap.Start })

	before := idx - config.GapRepairContextN
	if before < 0 {
		before = 0
	}
	after := idx + config.GapRepairContextN
	if after > len(contextSegs) {
		after = len(contextSegs)
	}

	var parts []string
	for _, seg := range contextSegs[before:idx] {
		parts = append(parts, truncateWords(seg.Original, config.GapRepairContextWords))
	}
	for _, seg := range contextSegs[idx:after] {
		parts = append(parts, truncateWords(seg.Original, config.GapRepairContextWords))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ")
}

// formAndClip builds captions from the gap-local ASR result (offset by
// gap.Start, same as chunk transcription) and clips them to the gap's
// bounds (spec I6: "no Segment produced by Gap Repair lies entirely
// outside the gap it was invoked to fill").
func formAndClip(result capability.ASRResult, gap model.Interval) []model.Segment {
	segs := asr.FormSegments(result, gap.Start)
	out := make([]model.Segment, 0, len(segs))
	for _, seg := range segs {
		if seg.End <= gap.Start || seg.Start >= gap.End {
			continue
		}
		if seg.Start < gap.Start {
			seg.Start = gap.Start
		}
		if seg.End > gap.End {
			seg.End = gap.End
		}
		if seg.End > seg.Start {
			out = append(out, seg)
		}
	}
	return out
}

// refineOvershoots implements spec §4.4's "overshoot refinement": any
// segment whose end exceeds the media duration, or overshoots the next
// segment's start by more than a small tolerance, is re-transcribed for
// its corrected window to fix long-tail hallucinations.
func (e *Engine) refineOvershoots(ctx context.Context, opID, audioPath string, segments []model.Segment, mediaDuration float64) []model.Segment {
	const overshootTolerance = 0.25

	out := append([]model.Segment(nil), segments...)
	for i := range out {
		seg := out[i]
		trueEnd := seg.End
		overshoots := false

		if seg.End > mediaDuration {
			trueEnd = mediaDuration
			overshoots = true
		}
		if i+1 < len(out) && seg.End > out[i+1].Start+overshootTolerance {
			if out[i+1].Start < trueEnd {
				trueEnd = out[i+1].Start
			}
			overshoots = true
		}
		if !overshoots || trueEnd <= seg.Start {
			continue
		}

		if ctx.Err() != nil {
			return out
		}
		refined, err := e.reTranscribeWindow(ctx, opID, audioPath, seg.Start, trueEnd)
		if err != nil {
			logger.WithOp(opID).Warn("overshoot refinement failed, keeping original segment", "error", err, "segment_index", seg.Index)
			continue
		}
		if refined.Original != "" {
			out[i] = refined
		} else {
			out[i].End = trueEnd
		}
	}
	return out
}

func (e *Engine) reTranscribeWindow(ctx context.Context, opID, audioPath string, start, end float64) (model.Segment, error) {
	clipPath := filepath.Join(e.tempDir, fmt.Sprintf("overshoot_%s_%.3f.wav", opID, start))
	if err := e.media.ExtractSegment(ctx, opID, audioPath, clipPath, start, end-start); err != nil {
		return model.Segment{}, err
	}
	result, err := e.asr.Transcribe(ctx, clipPath, "")
	if err != nil {
		return model.Segment{}, err
	}
	segs := asr.FormSegments(result, start)
	if len(segs) == 0 {
		return model.Segment{Start: start, End: end}, nil
	}
	merged := segs[0]
	for _, s := range segs[1:] {
		if s.Original != "" {
			merged.Original += " " + s.Original
		}
		if s.End > merged.End {
			merged.End = s.End
		}
	}
	if merged.End > end {
		merged.End = end
	}
	return merged, nil
}
