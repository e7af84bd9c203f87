// Scrubber implements C4, the Hallucination Scrubber: a repetition- and
// outro-aware filter over a batch's produced segments. Grounded on the
// teacher/pack's LLM-driven "reject implausible completions" pattern
// (alnah-go-transcript/internal/restructure uses the same chatCompleter
// capability shape) generalized into a keep/clean/delete classifier per
// spec §4.3.
package asr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dubcore/internal/capability"
	"dubcore/internal/logger"
	"dubcore/internal/model"
)

type scrubAction string

const (
	scrubKeep   scrubAction = "keep"
	scrubClean  scrubAction = "clean"
	scrubDelete scrubAction = "delete"
)

// Scrubber runs the LLM capability over one batch's segments with a system
// prompt declaring the video length and the outro validity rule (spec
// §4.3: "outros valid only when start_sec > 0.9 * VIDEO_LENGTH_SEC").
type Scrubber struct {
	llm            capability.LLM
	videoLengthSec float64
}

func NewScrubber(llm capability.LLM, videoLengthSec float64) *Scrubber {
	return &Scrubber{llm: llm, videoLengthSec: videoLengthSec}
}

// Scrub classifies and cleans segments. LLM failures fail open: segments
// are kept (after the local post-filter) rather than dropped, since a
// scrubber outage should not silently erase a whole batch's transcript.
func (s *Scrubber) Scrub(ctx context.Context, opID string, segments []model.Segment) []model.Segment {
	if len(segments) == 0 {
		return segments
	}
	decisions := s.classify(ctx, opID, segments)

	out := make([]model.Segment, 0, len(segments))
	for i, seg := range segments {
		action := scrubKeep
		if i < len(decisions) {
			action = decisions[i]
		}
		if action == scrubDelete {
			continue
		}
		seg.Original = localClean(seg.Original)
		out = append(out, seg)
	}
	return out
}

func (s *Scrubber) classify(ctx context.Context, opID string, segments []model.Segment) []scrubAction {
	keep := make([]scrubAction, len(segments))
	for i := range keep {
		keep[i] = scrubKeep
	}
	if s.llm == nil {
		return keep
	}

	system := fmt.Sprintf(
		"You review ASR-produced captions for hallucinations. VIDEO_LENGTH_SEC=%.2f. "+
			"An outro line (e.g. \"please subscribe\", \"thanks for watching\") is only a valid "+
			"caption if its start_sec > 0.9 * VIDEO_LENGTH_SEC; otherwise it is a hallucination. "+
			"For each numbered line reply with exactly one of: \"N: keep\", \"N: clean\", \"N: delete\".",
		s.videoLengthSec,
	)

	var user strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&user, "%d: [start=%.2f] %s\n", i+1, seg.Start, seg.Original)
	}

	resp, err := s.llm.Complete(ctx, capability.LLMRequest{
		Messages: []capability.LLMMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user.String()},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		logger.WithOp(opID).Warn("scrubber classification failed, keeping batch", "error", err)
		return keep
	}

	for i, action := range parseDecisions(resp, len(segments)) {
		if i < len(keep) && action != "" {
			keep[i] = action
		}
	}
	return keep
}

var decisionLineRe = regexp.MustCompile(`(?im)^\s*(\d+)\s*:\s*(keep|clean|delete)\s*$`)

func parseDecisions(resp string, n int) []scrubAction {
	out := make([]scrubAction, n)
	for _, m := range decisionLineRe.FindAllStringSubmatch(resp, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n {
			continue
		}
		out[idx-1] = scrubAction(m[2])
	}
	return out
}

func localClean(text string) string {
	text = collapseRepeatedSymbols(text)
	text = stripExtendedPictographics(text)
	return strings.TrimSpace(text)
}

func collapseRepeatedSymbols(text string) string {
	runes := []rune(text)
	var out []rune
	i := 0
	for i < len(runes) {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		run := j - i
		if isPunctOrSymbol(r) && run >= 3 {
			out = append(out, r)
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	return string(out)
}

func isPunctOrSymbol(r rune) bool {
	return (r >= '!' && r <= '/') || (r >= ':' && r <= '@') || (r >= '[' && r <= '`') || (r >= '{' && r <= '~')
}

// stripExtendedPictographics removes emoji from the Extended Pictographic
// Unicode ranges (spec §4.3).
func stripExtendedPictographics(text string) string {
	var b strings.Builder
	for _, r := range text {
		if isExtendedPictographic(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isExtendedPictographic(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0x2B50 || r == 0x2B55:
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	default:
		return false
	}
}
