package subtitlefmt

import (
	"strings"

	"dubcore/internal/config"
	"dubcore/internal/model"
)

// Finalize implements spec §4.7: fuse orphan segments into their
// predecessor, extend short inter-segment gaps to close dead air, and
// re-index densely from 1. Input is assumed already sorted by Start (the
// Coordinator's responsibility per spec §5's ordering guarantees).
func Finalize(segments []model.Segment) []model.Segment {
	fused := fuseOrphans(segments)
	extendShortGaps(fused)
	reindex(fused)
	return fused
}

// fuseOrphans appends any segment with fewer than OrphanMinWords whose gap
// from the previous segment is below MaxGapToFuseSec into the previous
// segment: text concatenated, end extended.
func fuseOrphans(segments []model.Segment) []model.Segment {
	if len(segments) == 0 {
		return segments
	}
	out := make([]model.Segment, 0, len(segments))
	out = append(out, segments[0])

	for _, seg := range segments[1:] {
		prev := &out[len(out)-1]
		gap := seg.Start - prev.End
		if wordCount(seg.Original) < config.OrphanMinWords && gap >= 0 && gap < config.MaxGapToFuseSec {
			if prev.Original != "" && seg.Original != "" {
				prev.Original = prev.Original + " " + seg.Original
			} else {
				prev.Original += seg.Original
			}
			if seg.End > prev.End {
				prev.End = seg.End
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// extendShortGaps sets prev.End = next.Start in place for any adjacent
// pair whose gap is strictly between 0 and SubtitleGapThresholdSec,
// closing short dead air without touching segments separated by real
// silence.
func extendShortGaps(segments []model.Segment) {
	for i := 1; i < len(segments); i++ {
		prev := &segments[i-1]
		next := &segments[i]
		gap := next.Start - prev.End
		if gap > 0 && gap < config.SubtitleGapThresholdSec {
			prev.End = next.Start
		}
	}
}

func reindex(segments []model.Segment) {
	for i := range segments {
		segments[i].Index = i + 1
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
