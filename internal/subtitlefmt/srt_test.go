package subtitlefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dubcore/internal/model"
)

func TestFormatTimestamp_ZeroPaddedThreeDigitMillis(t *testing.T) {
	d := 1*time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond
	assert.Equal(t, "01:02:03,004", FormatTimestamp(d))
}

func TestFormatTimestamp_Negative(t *testing.T) {
	assert.Equal(t, "00:00:00,000", FormatTimestamp(-time.Second))
}

func TestParseTimestamp_RoundTripsWithDot(t *testing.T) {
	d := ParseTimestamp("00:01:02.500")
	assert.Equal(t, "00:01:02,500", FormatTimestamp(d))
}

func TestFormatSRT_BitExactBlocks(t *testing.T) {
	subs := List{
		{Index: 1, StartTime: 2 * time.Second, EndTime: 4*time.Second + 500*time.Millisecond, Text: "hello"},
		{Index: 2, StartTime: 5 * time.Second, EndTime: 6 * time.Second, Text: "world"},
	}

	got := FormatSRT(subs)
	want := "1\n00:00:02,000 --> 00:00:04,500\nhello\n\n2\n00:00:05,000 --> 00:00:06,000\nworld\n"
	assert.Equal(t, want, got)
}

func TestFormatSRT_Empty(t *testing.T) {
	assert.Equal(t, "", FormatSRT(nil))
}

func TestParseSRT_RoundTripsFormatSRT(t *testing.T) {
	original := "1\n00:00:02,000 --> 00:00:04,500\nhello\n\n2\n00:00:05,000 --> 00:00:06,000\nworld\n"

	subs, err := ParseSRTString(original)
	assert.NoError(t, err)
	assert.Equal(t, original, FormatSRT(subs))
}

func TestDocument_OriginalModeIsBitExact(t *testing.T) {
	segments := []model.Segment{
		{Index: 1, Start: 2, End: 4.5, Original: "hello", Translation: "hola", HasTranslation: true},
	}

	doc := Document(segments, ModeOriginal)
	assert.Equal(t, "1\n00:00:02,000 --> 00:00:04,500\nhello\n", doc)
}

func TestDocument_TranslatedMode(t *testing.T) {
	segments := []model.Segment{
		{Index: 1, Start: 0, End: 1, Original: "hello", Translation: "hola", HasTranslation: true},
	}

	doc := Document(segments, ModeTranslated)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nhola\n", doc)
}

func TestDocument_DualModeUsesLiteralMarker(t *testing.T) {
	segments := []model.Segment{
		{Index: 1, Start: 0, End: 1, Original: "hello", Translation: "hola", HasTranslation: true},
	}

	doc := Document(segments, ModeDual)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nhello\n----\nhola\n", doc)
}

func TestDocument_DualModeFallsBackToOriginalWhenNoTranslation(t *testing.T) {
	segments := []model.Segment{
		{Index: 1, Start: 0, End: 1, Original: "hello"},
	}

	doc := Document(segments, ModeDual)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nhello\n", doc)
}

func TestDocument_EmptySegmentsProducesEmptyDocument(t *testing.T) {
	assert.Equal(t, "", Document(nil, ModeOriginal))
}
