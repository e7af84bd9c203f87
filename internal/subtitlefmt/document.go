package subtitlefmt

import (
	"dubcore/internal/model"
)

// Mode selects which text a subtitle document carries (spec §6).
type Mode string

const (
	ModeOriginal   Mode = "original"
	ModeTranslated Mode = "translated"
	ModeDual       Mode = "dual"
)

// DualMarker separates source and target lines in dual mode. A literal
// line, not a delimiter character, per spec §6 ("a literal marker line").
const DualMarker = "----"

// Document renders segments as an SRT document in the requested Mode.
// "original" mode is bit-exact: index/timestamp/text with no other
// transformation applied, matching spec §6's bit-exact requirement.
func Document(segments []model.Segment, mode Mode) string {
	subs := make(List, 0, len(segments))
	for _, seg := range segments {
		subs = append(subs, Subtitle{
			Index:     seg.Index,
			StartTime: SecondsToDuration(seg.Start),
			EndTime:   SecondsToDuration(seg.End),
			Text:      textFor(seg, mode),
		})
	}
	return FormatSRT(subs)
}

func textFor(seg model.Segment, mode Mode) string {
	switch mode {
	case ModeTranslated:
		return seg.Translation
	case ModeDual:
		if seg.Translation == "" {
			return seg.Original
		}
		return seg.Original + "\n" + DualMarker + "\n" + seg.Translation
	default:
		return seg.Original
	}
}
