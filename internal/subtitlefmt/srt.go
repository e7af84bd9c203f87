package subtitlefmt

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var timeRegex = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)

// ParseSRT parses SRT content from a reader. Adapted from the teacher's
// ParseSRT; the one change is that a block's text lines are joined with
// "\n" rather than a space.
func ParseSRT(r io.Reader) (List, error) {
	var subs List
	scanner := bufio.NewScanner(r)

	var cur *Subtitle
	lineNum := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			if cur != nil && cur.Text != "" {
				subs = append(subs, *cur)
			}
			cur = nil
			lineNum = 0
			continue
		}

		lineNum++
		switch lineNum {
		case 1:
			if idx, err := strconv.Atoi(line); err == nil {
				cur = &Subtitle{Index: idx}
			}
		case 2:
			if cur != nil {
				if m := timeRegex.FindStringSubmatch(line); len(m) == 3 {
					cur.StartTime = ParseTimestamp(m[1])
					cur.EndTime = ParseTimestamp(m[2])
				}
			}
		default:
			if cur != nil {
				// Joined with a newline, not a space: a block's text region
				// may itself be multi-line (spec §6's dual-mode marker line
				// in particular), so collapsing it here would lose that
				// structure on read-back.
				if cur.Text != "" {
					cur.Text += "\n"
				}
				cur.Text += line
			}
		}
	}
	if cur != nil && cur.Text != "" {
		subs = append(subs, *cur)
	}
	return subs, scanner.Err()
}

func ParseSRTFile(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSRT(f)
}

func ParseSRTString(content string) (List, error) {
	return ParseSRT(strings.NewReader(content))
}

// FormatSRT renders a List as bit-exact SRT text: blocks separated by a
// blank line, zero-padded timecodes, 3-digit milliseconds (spec §6).
func FormatSRT(subs List) string {
	var b strings.Builder
	for i, s := range subs {
		b.WriteString(strconv.Itoa(s.Index))
		b.WriteString("\n")
		b.WriteString(FormatTimestamp(s.StartTime))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(s.EndTime))
		b.WriteString("\n")
		b.WriteString(s.Text)
		b.WriteString("\n")
		if i < len(subs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func WriteSRTFile(path string, subs List) error {
	return os.WriteFile(path, []byte(FormatSRT(subs)), 0o644)
}
