package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dubcore/internal/capability"
	"dubcore/internal/logger"
	"dubcore/internal/media"
	"dubcore/internal/model"
	"dubcore/internal/pipeline"
	"dubcore/internal/provider"
	"dubcore/internal/subtitlefmt"
	"dubcore/internal/vad"
)

func generateCmd() *cobra.Command {
	var (
		targetLanguage string
		skipReview     bool
		dub            bool
		dubVoice       string
		dubFormat      string
		ambientMix     float64
		subtitleMode   string
		subtitleOut    string
		vadModelPath   string
		tempDir        string
	)

	cmd := &cobra.Command{
		Use:   "generate <media-file>",
		Short: "Transcribe, optionally translate/review, and optionally dub a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], generateOptions{
				targetLanguage: targetLanguage,
				skipReview:     skipReview,
				dub:            dub,
				dubVoice:       dubVoice,
				dubFormat:      dubFormat,
				ambientMix:     ambientMix,
				subtitleMode:   subtitleMode,
				subtitleOut:    subtitleOut,
				vadModelPath:   vadModelPath,
				tempDir:        tempDir,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&targetLanguage, "target-language", "l", "", "Target language code; omit to skip translation/review")
	flags.BoolVar(&skipReview, "skip-review", false, "Skip the review pass even when translating")
	flags.BoolVar(&dub, "dub", false, "Synthesize and mix a dubbed audio track")
	flags.StringVar(&dubVoice, "dub-voice", "", "TTS voice id/name")
	flags.StringVar(&dubFormat, "dub-format", "mp3", "TTS audio container format")
	flags.Float64Var(&ambientMix, "ambient-mix", -1, "Ambient mix weight in [0,1]; negative uses the configured default")
	flags.StringVar(&subtitleMode, "subtitle-mode", "original", "Subtitle text mode: original, translated, or dual")
	flags.StringVarP(&subtitleOut, "output", "o", "", "Subtitle output path (default: <input>.srt)")
	flags.StringVar(&vadModelPath, "vad-model", "", "Path to the Silero VAD ONNX model (required)")
	flags.StringVar(&tempDir, "temp-dir", "", "Base directory for run-scoped temp files (default: os.TempDir())")

	// Flags bound to Settings fields so config.Load's viper layer can pick
	// them up as overrides (layering order: defaults < file < env < flags).
	flags.String("transcription-provider", "", "openai or whisper-cpp")
	flags.String("llm-provider", "", "openai or openrouter")
	flags.String("tts-provider", "", "openai or elevenlabs")

	return cmd
}

type generateOptions struct {
	targetLanguage string
	skipReview     bool
	dub            bool
	dubVoice       string
	dubFormat      string
	ambientMix     float64
	subtitleMode   string
	subtitleOut    string
	vadModelPath   string
	tempDir        string
}

func runGenerate(cmd *cobra.Command, mediaPath string, opts generateOptions) error {
	settings, err := mustSettings(cmd)
	if err != nil {
		return err
	}
	logger.Configure(parseLogLevel(settings.LogLevel), os.Stderr, settings.LogFormat != "json")

	if opts.vadModelPath == "" {
		return fmt.Errorf("--vad-model is required")
	}
	if opts.tempDir == "" {
		opts.tempDir = os.TempDir()
	}

	mode, err := parseSubtitleMode(opts.subtitleMode)
	if err != nil {
		return err
	}
	ambientMix := opts.ambientMix
	if ambientMix < 0 {
		ambientMix = settings.AmbientMixDefault
	}

	asrCap, err := provider.NewASR(settings)
	if err != nil {
		return err
	}
	llmCap, err := provider.NewLLM(settings)
	if err != nil {
		return err
	}
	var ttsCap capability.TTS
	if opts.dub {
		ttsCap, err = provider.NewTTS(settings)
		if err != nil {
			return err
		}
	}

	mediaSvc := media.New()
	if err := mediaSvc.CheckInstalled(cmd.Context()); err != nil {
		return err
	}

	vadConfig := vad.DefaultConfig(opts.vadModelPath)
	coordinator := pipeline.NewCoordinator(settings, mediaSvc, asrCap, llmCap, ttsCap, opts.tempDir, vadConfig)

	bar := newProgressBar(cmd.OutOrStderr())
	defer bar.Close()

	req := pipeline.Request{
		MediaPath:      mediaPath,
		TargetLanguage: opts.targetLanguage,
		SkipReview:     opts.skipReview,
		Dub:            opts.dub,
		DubVoice:       opts.dubVoice,
		DubFormat:      opts.dubFormat,
		AmbientMix:     ambientMix,
		SubtitleMode:   mode,
	}

	result, err := coordinator.Generate(cmd.Context(), req, func(ev model.ProgressEvent) {
		bar.Describe(ev.String())
		_ = bar.Set(ev.Percent)
	})
	if err != nil {
		return err
	}
	_ = bar.Finish()

	subtitleOut := opts.subtitleOut
	if subtitleOut == "" {
		ext := filepath.Ext(mediaPath)
		subtitleOut = mediaPath[:len(mediaPath)-len(ext)] + ".srt"
	}
	if err := os.WriteFile(subtitleOut, []byte(result.SubtitleDoc), 0o644); err != nil {
		return fmt.Errorf("write subtitle output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Subtitles: %s\n", subtitleOut)

	if result.DubbedMediaPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Dubbed media: %s\n", result.DubbedMediaPath)
	} else if result.DubbedAudioPath != "" {
		size, statErr := fileSize(result.DubbedAudioPath)
		if statErr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Dubbed audio: %s (%s)\n", result.DubbedAudioPath, humanize.Bytes(size))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Dubbed audio: %s\n", result.DubbedAudioPath)
		}
	}
	return nil
}

func parseLogLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func parseSubtitleMode(s string) (subtitlefmt.Mode, error) {
	switch subtitlefmt.Mode(s) {
	case subtitlefmt.ModeOriginal, subtitlefmt.ModeTranslated, subtitlefmt.ModeDual:
		return subtitlefmt.Mode(s), nil
	default:
		return "", fmt.Errorf("invalid --subtitle-mode %q (want original, translated, or dual)", s)
	}
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// newProgressBar is grounded on tassa-yoniso-manasi-karoto-langkit's
// cmd/task.go bulkBar helper (NewOptions + a bracketed theme), rendered
// against 100 fixed steps since the pipeline's own Percent field already is
// 0-100 (spec §4.9).
func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription("starting..."),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
