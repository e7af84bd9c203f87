// Package media implements C1, the Media I/O Adapter: it hides the media
// toolchain (ffmpeg/ffprobe subprocesses) behind the small capability
// surface spec §4.1 names. Adapted from the teacher's
// internal/media/ffmpeg.go and services/ffmpeg.go (AdjustAudioDuration's
// atempo-composition logic in particular), generalized to accept a
// context.Context + operation id on every call so cancelation propagates
// to the subprocess (spec §4.1, §5) instead of only being checked between
// calls.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dubcore/internal/logger"
	"dubcore/internal/pipeerr"
)

// Service wraps ffmpeg/ffprobe for the operations spec §4.1 names.
type Service struct {
	ffmpegPath  string
	ffprobePath string
	cache       *DurationCache
}

func New() *Service {
	return NewWithPath(detectFFmpeg())
}

func NewWithPath(ffmpegPath string) *Service {
	return &Service{
		ffmpegPath:  ffmpegPath,
		ffprobePath: strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1),
		cache:       NewDurationCache(),
	}
}

func detectFFmpeg() string {
	for _, p := range []string{"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg", "/usr/bin/ffmpeg", "ffmpeg"} {
		if filepath.IsAbs(p) {
			if _, err := os.Stat(p); err == nil {
				return p
			}
			continue
		}
		return p
	}
	return "ffmpeg"
}

func (s *Service) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return pipeerr.New(pipeerr.MediaProbe, "", "check-installed", fmt.Errorf("ffmpeg not found at %s: %w", s.ffmpegPath, err))
	}
	return nil
}

// ProbeDuration implements spec §4.1's probe_duration: fails with
// MediaProbe when duration is unknown or <= 0.
func (s *Service) ProbeDuration(ctx context.Context, opID, path string) (float64, error) {
	if d, ok := s.cache.Get(path); ok {
		return d, nil
	}

	args := []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path}
	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, pipeerr.New(pipeerr.Cancelled, opID, "probe", ctx.Err())
		}
		return 0, pipeerr.New(pipeerr.MediaProbe, opID, "probe", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d <= 0 {
		return 0, pipeerr.New(pipeerr.MediaProbe, opID, "probe", fmt.Errorf("unparseable or non-positive duration: %q", string(out)))
	}

	s.cache.Set(path, d)
	return d, nil
}

// ExtractSegment implements spec §4.1's extract_segment.
func (s *Service) ExtractSegment(ctx context.Context, opID, input, output string, startSec, durationSec float64) error {
	if err := ensureDir(output); err != nil {
		return pipeerr.New(pipeerr.MediaExtract, opID, "extract", err)
	}
	args := []string{
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-i", input,
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-ar", "16000", "-ac", "1", "-acodec", "pcm_s16le",
		"-y", output,
	}
	return s.run(ctx, opID, pipeerr.MediaExtract, "extract", args)
}

// Transcode implements spec §4.1's transcode with a caller-supplied codec
// spec, e.g. []string{"-c:a", "aac", "-b:a", "192k"}.
func (s *Service) Transcode(ctx context.Context, opID, input, output string, codecSpec []string) error {
	if err := ensureDir(output); err != nil {
		return pipeerr.New(pipeerr.MediaExtract, opID, "transcode", err)
	}
	args := append([]string{"-i", input}, codecSpec...)
	args = append(args, "-y", output)
	return s.run(ctx, opID, pipeerr.MediaExtract, "transcode", args)
}

// RunFilterGraph implements spec §4.1's run_filtergraph: arbitrary filter
// expressions (atempo composition, adelay, apad, atrim, amix, volume) over
// one or more inputs.
func (s *Service) RunFilterGraph(ctx context.Context, opID string, inputs []string, filterExpr string, output string, extraArgs ...string) error {
	if err := ensureDir(output); err != nil {
		return pipeerr.New(pipeerr.MediaExtract, opID, "filtergraph", err)
	}
	var args []string
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", filterExpr)
	args = append(args, extraArgs...)
	args = append(args, "-y", output)
	return s.run(ctx, opID, pipeerr.MediaExtract, "filtergraph", args)
}

// Mux combines a video stream with a replacement audio track.
func (s *Service) Mux(ctx context.Context, opID, videoPath, audioPath, output string) error {
	if err := ensureDir(output); err != nil {
		return pipeerr.New(pipeerr.MediaMux, opID, "mux", err)
	}
	args := []string{
		"-i", videoPath, "-i", audioPath,
		"-c:v", "copy", "-map", "0:v", "-map", "1:a", "-shortest",
		"-y", output,
	}
	return s.run(ctx, opID, pipeerr.MediaMux, "mux", args)
}

// DecodePCMMono16k implements spec §4.1's decode_pcm_mono_16k: streams raw
// 16-bit LE mono samples at 16kHz through the returned PCMStream for VAD to
// consume. Grounded on other_examples/a8e42ee1_naozine-zbor's pattern of
// piping ffmpeg's stdout straight into a PCM frame reader.
func (s *Service) DecodePCMMono16k(ctx context.Context, opID, path string) (*PCMStream, error) {
	args := []string{
		"-i", path,
		"-f", "s16le", "-ar", "16000", "-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, pipeerr.New(pipeerr.VADUnavailable, opID, "decode-pcm", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, pipeerr.New(pipeerr.VADUnavailable, opID, "decode-pcm", err)
	}
	return &PCMStream{cmd: cmd, stdout: stdout}, nil
}

// GenerateSilence writes a silent WAV of the given duration. Grounded on
// teacher's GenerateSilence — kept at 24kHz mono to match the teacher's
// documented fix for an audible-beep bug from using a lossy codec here.
func (s *Service) GenerateSilence(ctx context.Context, opID string, durationSec float64, output string) error {
	if err := ensureDir(output); err != nil {
		return pipeerr.New(pipeerr.MediaExtract, opID, "silence", err)
	}
	args := []string{
		"-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=24000:cl=mono:d=%.3f", durationSec),
		"-acodec", "pcm_s16le", "-ar", "24000", "-ac", "1",
		"-y", output,
	}
	return s.run(ctx, opID, pipeerr.MediaExtract, "silence", args)
}

func (s *Service) run(ctx context.Context, opID string, kind pipeerr.Kind, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return pipeerr.New(pipeerr.Cancelled, opID, stage, ctx.Err())
		}
		logger.WithOp(opID).Error("ffmpeg command failed", "stage", stage, "output", string(out))
		return pipeerr.New(kind, opID, stage, err)
	}
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
