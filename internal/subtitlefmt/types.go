// Package subtitlefmt implements subtitle finalization (spec §4.7) and the
// subtitle document format (spec §6): a bit-exact SRT writer/parser plus an
// alternate-format exporter. Types and the SRT codec are adapted from
// anilpdv-video-dubber's internal/subtitle package (types.go, timestamp.go,
// srt.go); finalization and multi-mode document assembly are new, built to
// spec.
package subtitlefmt

import (
	"strings"
	"time"
)

// Subtitle is a parsed SRT entry, used when reading provider output (e.g.
// whisper-cli's -osrt) back into the pipeline.
type Subtitle struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

func (s Subtitle) Duration() time.Duration { return s.EndTime - s.StartTime }

func (s Subtitle) IsEmpty() bool { return strings.TrimSpace(s.Text) == "" }

// List is a slice of Subtitle with a few convenience accessors mirrored
// from the teacher's subtitle.List.
type List []Subtitle

func (l List) NonEmpty() List {
	out := make(List, 0, len(l))
	for _, s := range l {
		if !s.IsEmpty() {
			out = append(out, s)
		}
	}
	return out
}
