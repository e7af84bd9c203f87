package provider

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"dubcore/internal/pipeerr"

	"dubcore/internal/capability"
	"dubcore/internal/subtitlefmt"
)

// WhisperCPPASR implements capability.ASR against a local whisper-cli/
// whisper-cpp binary, adapted from anilpdv-video-dubber's
// services/whisper.go Transcribe: shells out, writes an SRT file, parses
// it back. whisper.cpp's CLI does not expose per-segment avg_logprob or
// no_speech_prob or word timestamps, so this provider's ASRResult always
// has HasScores=false and Words=nil — the "no such filter available,
// accept all words" branch of spec §4.3.
type WhisperCPPASR struct {
	binPath   string
	modelPath string
	language  string
}

func NewWhisperCPPASR(binPath, modelPath, language string) *WhisperCPPASR {
	return &WhisperCPPASR{binPath: binPath, modelPath: modelPath, language: language}
}

func (p *WhisperCPPASR) Transcribe(ctx context.Context, clipPath string, promptContext string) (capability.ASRResult, error) {
	outDir := filepath.Dir(clipPath)
	base := strings.TrimSuffix(filepath.Base(clipPath), filepath.Ext(clipPath))
	outPrefix := filepath.Join(outDir, base)
	srtPath := outPrefix + ".srt"

	args := []string{
		"-m", p.modelPath,
		"-f", clipPath,
		"-osrt",
		"-of", outPrefix,
	}
	if p.language != "" {
		args = append(args, "-l", p.language)
	}
	if promptContext != "" {
		args = append(args, "--prompt", promptContext)
	}

	cmd := exec.CommandContext(ctx, p.binPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return capability.ASRResult{}, pipeerr.New(pipeerr.Cancelled, "", "asr-whispercpp", ctx.Err())
		}
		return capability.ASRResult{}, pipeerr.New(pipeerr.ASRChunkFailed, "", "asr-whispercpp", fmt.Errorf("whisper-cli: %w: %s", err, string(out)))
	}

	subs, err := subtitlefmt.ParseSRTFile(srtPath)
	if err != nil {
		return capability.ASRResult{}, pipeerr.New(pipeerr.ASRChunkFailed, "", "asr-whispercpp", fmt.Errorf("parse whisper-cli srt output: %w", err))
	}

	result := capability.ASRResult{Language: p.language}
	var text strings.Builder
	for _, s := range subs {
		result.Segments = append(result.Segments, capability.ASRSegment{
			Start: s.StartTime.Seconds(),
			End:   s.EndTime.Seconds(),
			Text:  s.Text,
		})
		text.WriteString(s.Text)
		text.WriteString(" ")
	}
	result.Text = strings.TrimSpace(text.String())
	return result, nil
}
