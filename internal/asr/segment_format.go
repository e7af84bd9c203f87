package asr

import (
	"regexp"
	"strings"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/model"
)

// punctuationPrefix matches a leading Unicode punctuation/symbol rune,
// spec §4.3's "attaching Unicode punctuation... to the previous word
// without a space" rule.
var punctuationPrefix = regexp.MustCompile(`^[\p{P}$+<=>^` + "`" + `|~]`)

// wordWithSeg pairs a word with the index of the ASR segment it fell
// inside, so grouping can test "word ends an ASR segment" (a hard
// boundary).
type wordWithSeg struct {
	capability.ASRWord
	segIndex int
}

// FormSegments implements spec §4.3's segment-formation rules. When the
// ASR result exposes word timestamps, words are filtered by their
// enclosing segment's quality scores and regrouped into captions. When it
// doesn't, each provider ASRSegment becomes one caption verbatim — "if no
// such filter is available, accept all words."
func FormSegments(result capability.ASRResult, offsetSec float64) []model.Segment {
	if len(result.Words) == 0 {
		return segmentsFromASRSegments(result, offsetSec)
	}
	return segmentsFromWords(result, offsetSec)
}

func segmentsFromASRSegments(result capability.ASRResult, offsetSec float64) []model.Segment {
	out := make([]model.Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, model.Segment{
			Start:        s.Start + offsetSec,
			End:          s.End + offsetSec,
			Original:     text,
			HasScores:    s.HasScores,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return out
}

func segmentsFromWords(result capability.ASRResult, offsetSec float64) []model.Segment {
	tagged := tagWordsBySegment(result)
	filtered := filterWords(tagged, result.Segments)
	return groupWords(filtered, offsetSec)
}

func tagWordsBySegment(result capability.ASRResult) []wordWithSeg {
	tagged := make([]wordWithSeg, 0, len(result.Words))
	segIdx := 0
	for _, w := range result.Words {
		for segIdx < len(result.Segments)-1 && w.Start >= result.Segments[segIdx].End {
			segIdx++
		}
		tagged = append(tagged, wordWithSeg{ASRWord: w, segIndex: segIdx})
	}
	return tagged
}

func filterWords(tagged []wordWithSeg, segments []capability.ASRSegment) []wordWithSeg {
	out := make([]wordWithSeg, 0, len(tagged))
	for _, w := range tagged {
		if w.segIndex < len(segments) {
			seg := segments[w.segIndex]
			if seg.HasScores && (seg.NoSpeechProb >= config.ASRNoSpeechProbMax || seg.AvgLogprob <= config.ASRAvgLogprobMin) {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

// groupWords scans words in order, cutting a caption when a hard boundary
// is hit (ends an ASR segment, or is the last word) or a size boundary is
// hit (>=8s accumulated duration or >=12 words) AND the minimum size
// (>=3 words) is met. Hard boundaries bypass the minimum size.
func groupWords(words []wordWithSeg, offsetSec float64) []model.Segment {
	var out []model.Segment
	var cur []wordWithSeg

	for i, w := range words {
		cur = append(cur, w)

		isLastWord := i == len(words)-1
		endsASRSegment := isLastWord || words[i+1].segIndex != w.segIndex
		hardBoundary := isLastWord || endsASRSegment

		duration := w.End - cur[0].Start
		sizeBoundary := duration >= config.SegmentMaxDurationSec || len(cur) >= config.SegmentMaxWords
		minSizeMet := len(cur) >= config.SegmentMinWords

		if hardBoundary || (sizeBoundary && minSizeMet) {
			out = append(out, buildCaption(cur, offsetSec))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, buildCaption(cur, offsetSec))
	}
	return out
}

func buildCaption(words []wordWithSeg, offsetSec float64) model.Segment {
	var sb strings.Builder
	wordsOut := make([]model.Word, 0, len(words))
	for i, w := range words {
		if i > 0 && !punctuationPrefix.MatchString(w.Text) {
			sb.WriteString(" ")
		}
		sb.WriteString(w.Text)
		wordsOut = append(wordsOut, model.Word{
			Text:  w.Text,
			Start: w.Start + offsetSec,
			End:   w.End + offsetSec,
		})
	}
	return model.Segment{
		Start:    words[0].Start + offsetSec,
		End:      words[len(words)-1].End + offsetSec,
		Original: strings.TrimSpace(sb.String()),
		Words:    wordsOut,
	}
}
