package subtitlefmt

import (
	"io"
	"time"

	astisub "github.com/tassa-yoniso-manasi-karoto/go-astisub"

	"dubcore/internal/model"
)

// ExportFormat names an alternate subtitle container go-astisub can emit.
// The bit-exact SRT path (Document/FormatSRT above) never routes through
// here: go-astisub's own SRT writer does not guarantee byte-for-byte
// output, so it only gets a home on the non-bit-exact export formats spec
// §6 leaves unspecified, per DESIGN.md.
type ExportFormat string

const (
	ExportWebVTT ExportFormat = "webvtt"
	ExportASS    ExportFormat = "ass"
)

// Export writes segments to w in an alternate container using
// tassa-yoniso-manasi-karoto/go-astisub, grounded on
// tassa-yoniso-manasi-karoto/langkit's cmd/translit.go WriteASS.
func Export(segments []model.Segment, mode Mode, format ExportFormat, w io.Writer) error {
	subs := toAstisub(segments, mode)
	switch format {
	case ExportASS:
		return subs.WriteToSSA(w)
	default:
		return subs.WriteToWebVTT(w)
	}
}

func toAstisub(segments []model.Segment, mode Mode) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	for _, seg := range segments {
		text := textFor(seg, mode)
		if text == "" {
			continue
		}
		item := &astisub.Item{
			StartAt: time.Duration(seg.Start * float64(time.Second)),
			EndAt:   time.Duration(seg.End * float64(time.Second)),
			Lines:   linesFor(text),
		}
		subs.Items = append(subs.Items, item)
	}
	return subs
}

func linesFor(text string) []astisub.Line {
	return []astisub.Line{{Items: []astisub.LineItem{{Text: text}}}}
}
