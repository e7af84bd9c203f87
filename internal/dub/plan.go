// Package dub implements C8, the Dub Aligner & Mixer: per-segment TTS slot
// planning, fit/compression, timeline assembly, and final ambient mixing.
// Grounded throughout on anilpdv-video-dubber's services/ffmpeg.go
// (AdjustAudioDuration's atempo logic, generalized in atempo.go) and
// internal/media/assembly.go (filter-graph composition for the final mix).
package dub

import (
	"math"

	"dubcore/internal/config"
	"dubcore/internal/model"
)

// BuildPlans implements spec §4.8 step 1: one DubPlan per segment, with
// start = segment.start and an initial target_duration clamped to a 50ms
// floor. original_start is recorded so later slot expansions can be
// undone at final placement (I4, I5).
func BuildPlans(segments []model.Segment) []model.DubPlan {
	plans := make([]model.DubPlan, len(segments))
	for i, seg := range segments {
		dur := seg.End - seg.Start
		if dur < 0.05 {
			dur = 0.05
		}
		text := seg.Original
		if seg.HasTranslation {
			text = seg.Translation
		}
		plans[i] = model.DubPlan{
			SegmentIndex:      i,
			Start:             seg.Start,
			TargetDurationSec: dur,
			OriginalStart:     seg.Start,
			Source:            seg.Original,
			Translation:       text,
		}
	}
	return plans
}

// BatchSize implements spec §4.8 step 2's batching rule:
// clamp(ceil(N/10), 1, 20).
func BatchSize(n int) int {
	size := int(math.Ceil(float64(n) / 10.0))
	if size < 1 {
		size = 1
	}
	if size > 20 {
		size = 20
	}
	return size
}

// extendAllocation implements spec §4.8 step 3b: consume available gap to
// the next plan first (without shifting later plans), then consume gap to
// the previous plan by sliding this plan's start earlier, never more than
// MinDubSilenceGapSec before its original_start. Forward-sliding later plans is explicitly not permitted
// (legacy behavior, disabled per spec). Returns the additional seconds of
// slot actually gained.
func extendAllocation(plans []model.DubPlan, index int, extraNeeded float64) float64 {
	if extraNeeded <= 0 {
		return 0
	}
	gained := 0.0
	plan := &plans[index]

	if index+1 < len(plans) {
		next := plans[index+1]
		gapToNext := next.Start - (plan.Start + plan.TargetDurationSec)
		usable := gapToNext - config.MinDubSilenceGapSec
		if usable > 0 {
			take := math.Min(usable, extraNeeded)
			plan.TargetDurationSec += take
			gained += take
			extraNeeded -= take
		}
	}

	if extraNeeded > 0 && index > 0 {
		prev := plans[index-1]
		gapToPrev := plan.Start - (prev.Start + prev.TargetDurationSec)
		usable := math.Min(gapToPrev, config.MinDubSilenceGapSec)
		if usable > 0 {
			take := math.Min(usable, extraNeeded)
			newStart := plan.Start - take
			if newStart < plan.OriginalStart-config.MinDubSilenceGapSec {
				// never before original_start (with the same slack tolerance)
				take = math.Max(0, plan.Start-(plan.OriginalStart-config.MinDubSilenceGapSec))
				newStart = plan.Start - take
			}
			plan.Start = newStart
			plan.TargetDurationSec += take
			gained += take
		}
	}

	return gained
}

// fitClip implements spec §4.8 step 3: given a clip's measured duration,
// extend the slot where possible, then cap-and-compress the remainder.
// Returns the ffmpeg atempo filter expression to apply (empty if none
// needed) and the final slot length the clip must occupy.
func fitClip(plans []model.DubPlan, index int, measured float64, maxCompressionRatio float64) (atempoExpr string, finalSlot float64) {
	plan := &plans[index]
	slot := plan.TargetDurationSec

	if measured > slot {
		extra := measured - slot
		gained := extendAllocation(plans, index, extra)
		slot = plans[index].TargetDurationSec
		_ = gained
	}

	ratio := measured / slot
	if ratio <= 1+config.CompressionTolerance {
		return "", math.Max(slot, measured)
	}

	cappedRatio := math.Min(ratio, maxCompressionRatio)
	targetSlot := measured / cappedRatio

	if targetSlot > slot {
		extendAllocation(plans, index, targetSlot-slot)
		slot = plans[index].TargetDurationSec
	}

	finalRatio := measured / slot
	if finalRatio <= 1+config.CompressionTolerance {
		return "", slot
	}
	if finalRatio > maxCompressionRatio {
		finalRatio = maxCompressionRatio
	}
	return atempoChain(finalRatio), slot
}
