// Command dubcore transcribes, translates, and optionally dubs a media
// file, per the C1-C9 pipeline in internal/pipeline. Grounded on
// alnah-go-transcript/cmd/transcript/main.go's root-command shape
// (SilenceErrors/SilenceUsage, signal.NotifyContext, godotenv, an
// errors.Is-chain exit-code dispatcher).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dubcore/internal/config"
	"dubcore/internal/pipeerr"
)

// Exit codes. 0/1/2 follow Unix/cobra convention; the rest map the
// pipeerr.Kind taxonomy (spec §7) onto distinct codes so callers can
// script around specific failure classes without parsing messages.
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitUsage       = 2
	ExitMedia       = 3
	ExitVAD         = 4
	ExitASR         = 5
	ExitTranslation = 6
	ExitReview      = 7
	ExitTTS         = 8
	ExitDub         = 9
	ExitInterrupt   = 130
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dubcore",
		Short:         "Transcribe, translate, and dub media files",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(generateCmd())
	return root
}

// exitCode maps a pipeline error to a process exit code (spec §7).
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	kind, ok := pipeerr.KindOf(err)
	if !ok {
		return ExitGeneral
	}
	switch kind {
	case pipeerr.MediaProbe, pipeerr.MediaExtract, pipeerr.MediaMux:
		return ExitMedia
	case pipeerr.VADUnavailable:
		return ExitVAD
	case pipeerr.ASRChunkFailed:
		return ExitASR
	case pipeerr.TranslationBatchFailed:
		return ExitTranslation
	case pipeerr.ReviewBatchRejected:
		return ExitReview
	case pipeerr.TTSFailed:
		return ExitTTS
	case pipeerr.DubFitFailed:
		return ExitDub
	case pipeerr.Cancelled:
		return ExitInterrupt
	default:
		return ExitGeneral
	}
}

// mustSettings loads layered Settings the way every subcommand needs them;
// a *pflag.FlagSet from the invoking command lets CLI flags override
// config-file/env values (config.Load's layering order).
func mustSettings(cmd *cobra.Command) (*config.Settings, error) {
	return config.Load(cmd.Flags())
}
