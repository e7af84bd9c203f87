package vad

import (
	"sort"

	"dubcore/internal/config"
	"dubcore/internal/model"
)

// Normalize implements spec §4.2 step 3: sort by start, merge any two
// intervals whose gap is below VADNormalizationMinGapSec, then drop
// intervals shorter than VADNormalizationMinDurationSec.
func Normalize(intervals []model.Interval) []model.Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]model.Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []model.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start-last.End < config.VADNormalizationMinGapSec {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	out := merged[:0]
	for _, iv := range merged {
		if iv.Duration() >= config.VADNormalizationMinDurationSec {
			out = append(out, iv)
		}
	}
	return out
}

// MergeAndSplit implements spec §4.2 step 4: merge adjacent speech
// intervals when their gap is below MergeGapSec, then subdivide any
// interval longer than MaxSpeechlessSec by recursive midpoint split.
func MergeAndSplit(intervals []model.Interval) []model.Interval {
	if len(intervals) == 0 {
		return nil
	}
	merged := []model.Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.Start-last.End < config.MergeGapSec {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	var out []model.Interval
	for _, iv := range merged {
		out = append(out, splitLong(iv)...)
	}
	return out
}

func splitLong(iv model.Interval) []model.Interval {
	if iv.Duration() <= config.MaxSpeechlessSec {
		return []model.Interval{iv}
	}
	mid := (iv.Start + iv.End) / 2
	left := splitLong(model.Interval{Start: iv.Start, End: mid})
	right := splitLong(model.Interval{Start: mid, End: iv.End})
	return append(left, right...)
}

// Planner builds transcription chunks from merged speech intervals (spec
// §4.2 step 5).
type Planner struct {
	PrePadSec            float64
	PostPadSec           float64
	MaxChunkDurationSec  float64
	MinChunkDurationSec  float64
}

func NewPlanner() *Planner {
	return &Planner{
		PrePadSec:           config.PrePadSec,
		PostPadSec:          config.PostPadSec,
		MaxChunkDurationSec: config.MaxChunkDurationSec,
		MinChunkDurationSec: config.MinChunkDurationSec,
	}
}

// Plan walks merged intervals in order, pads each, and groups them into
// chunks bounded by MaxChunkDurationSec. It returns the chunk Intervals
// (step 5) alongside the normalized+merged speech Intervals the caller
// should keep for gap detection (spec §4.4).
func (p *Planner) Plan(rawIntervals []model.Interval, mediaDuration float64) (chunks []model.Interval, speech []model.Interval) {
	normalized := Normalize(rawIntervals)
	speech = MergeAndSplit(normalized)

	var padded []model.Interval
	for _, iv := range speech {
		start := clamp(iv.Start-p.PrePadSec, 0, mediaDuration)
		end := clamp(iv.End+p.PostPadSec, 0, mediaDuration)
		if end <= start {
			continue
		}
		padded = append(padded, model.Interval{Start: start, End: end})
	}

	if len(padded) == 0 {
		return nil, speech
	}

	// Walk padded blocks in order, extending the currently open chunk's end
	// as blocks accumulate; close and emit once its span reaches
	// MaxChunkDurationSec. The closed chunk's End already absorbed
	// whichever block triggered the close, so the next chunk opens fresh at
	// the *following* block instead of re-merging that same block — doing
	// otherwise would hand the same time range to two chunks (spec §1:
	// "without double-counting words").
	var cur *model.Interval
	for _, iv := range padded {
		if cur == nil {
			block := iv
			cur = &block
		} else if iv.End > cur.End {
			cur.End = iv.End
		}
		if cur.Duration() >= p.MaxChunkDurationSec {
			chunks = append(chunks, *cur)
			cur = nil
		}
	}
	if cur != nil && cur.Duration() > 0 {
		chunks = append(chunks, *cur)
	}
	return chunks, speech
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
