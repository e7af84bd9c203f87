// Package pipeline implements C9, the Pipeline Coordinator: composes
// C1-C8 into one generate(request) -> result call, owns the temp
// directory, registers the run's cancelation token, and scales every
// stage's progress into the fixed 0-100 bands spec §4.9 defines.
// Grounded on anilpdv-video-dubber's top-level job orchestration
// (models/job.go's Job lifecycle, services/* composed by a single
// driver), generalized around context.Context cancelation and the
// opid.Registry instead of a polling status field.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"dubcore/internal/asr"
	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/dub"
	"dubcore/internal/gaprepair"
	"dubcore/internal/logger"
	"dubcore/internal/media"
	"dubcore/internal/model"
	"dubcore/internal/opid"
	"dubcore/internal/pipeerr"
	"dubcore/internal/review"
	"dubcore/internal/subtitlefmt"
	"dubcore/internal/translate"
	"dubcore/internal/vad"
	"dubcore/internal/worker"
)

// Request bundles one run's inputs. MediaPath is required; the remaining
// fields gate which optional stages run (translation, review, dubbing).
type Request struct {
	MediaPath      string
	TargetLanguage string // empty: skip translation/review
	SkipReview     bool
	Dub            bool
	DubVoice       string
	DubFormat      string
	AmbientMix     float64
	SubtitleMode   subtitlefmt.Mode
}

// Result is everything a run produces.
type Result struct {
	OperationID     string
	Segments        []model.Segment
	SubtitleDoc     string
	DubbedAudioPath string
	DubbedMediaPath string
}

// Coordinator wires concrete capability providers and shared infrastructure
// into one generate operation. Constructed once per process; Generate is
// safe to call repeatedly (each run gets its own OperationId and temp dir).
type Coordinator struct {
	settings *config.Settings
	media    *media.Service
	asrCap   capability.ASR
	llmCap   capability.LLM
	ttsCap   capability.TTS

	registry  *opid.Registry
	baseTemp  string
	vadConfig vad.Config
}

func NewCoordinator(settings *config.Settings, mediaSvc *media.Service, asrCap capability.ASR, llmCap capability.LLM, ttsCap capability.TTS, baseTemp string, vadConfig vad.Config) *Coordinator {
	return &Coordinator{
		settings:  settings,
		media:     mediaSvc,
		asrCap:    asrCap,
		llmCap:    llmCap,
		ttsCap:    ttsCap,
		registry:  opid.NewRegistry(),
		baseTemp:  baseTemp,
		vadConfig: vadConfig,
	}
}

// CancelRun cancels an in-flight run by operation id; used by an external
// caller (CLI signal handler, future IPC layer).
func (c *Coordinator) CancelRun(opID string) bool {
	return c.registry.Cancel(opID)
}

// Generate runs C1-C8 end to end for one request (spec §4.9).
func (c *Coordinator) Generate(parent context.Context, req Request, progress model.ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = model.NoopProgress
	}
	opID := opid.New()
	log := logger.WithOp(opID)

	ctx, cancel := context.WithCancel(parent)
	release := c.registry.Register(opID, cancel)
	defer release()
	defer cancel()

	tempDir := filepath.Join(c.baseTemp, opID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, pipeerr.New(pipeerr.MediaExtract, opID, "temp-dir", err)
	}
	defer func() {
		if !c.settings.RetainTempFiles {
			os.RemoveAll(tempDir)
		}
	}()

	result := &Result{OperationID: opID}

	mediaDuration, err := c.media.ProbeDuration(ctx, opID, req.MediaPath)
	if err != nil {
		return nil, err
	}

	// --- Stage: audio extraction (0-10) ---
	audioPath := filepath.Join(tempDir, "audio_16k_mono.wav")
	if err := c.media.ExtractSegment(ctx, opID, req.MediaPath, audioPath, 0, mediaDuration); err != nil {
		return nil, err
	}
	progress(model.ProgressEvent{Percent: config.ProgressExtractEnd, Stage: "extract"})

	rawIntervals, err := c.runVAD(ctx, opID, audioPath)
	if err != nil {
		return nil, err
	}
	planner := vad.NewPlanner()
	chunks, speech := planner.Plan(rawIntervals, mediaDuration)

	// --- Stage: transcription + scrubbing (10-50) ---
	sharedPool := worker.NewSharedPool(c.resolveWhisperParallel())
	scrubber := asr.NewScrubber(c.llmCap, mediaDuration)
	orchestrator := asr.NewOrchestrator(c.asrCap, c.media, sharedPool, scrubber, tempDir)

	segments, err := orchestrator.TranscribeMedia(ctx, opID, audioPath, chunks, wrapStage(progress, "transcribe"))
	if err != nil && pipeerr.Fatal(mustKind(err)) {
		return nil, err
	}

	gapEngine := gaprepair.NewEngine(c.asrCap, c.media, sharedPool, tempDir)
	segments = gapEngine.Repair(ctx, opID, audioPath, segments, speech, mediaDuration, wrapStage(progress, "gap-repair"))

	segments = subtitlefmt.Finalize(segments)
	progress(model.ProgressEvent{Percent: config.ProgressTranscribeEnd, Stage: "transcribe-complete"})

	if ctx.Err() != nil {
		return nil, pipeerr.New(pipeerr.Cancelled, opID, "generate", ctx.Err())
	}

	// --- Stage: translation (50-75 or 50-95) + review (75-95) ---
	translateEnd := config.ProgressTranslateWithoutReviewEnd
	doReview := req.TargetLanguage != "" && !req.SkipReview
	if doReview {
		translateEnd = config.ProgressTranslateWithReviewEnd
	}

	if req.TargetLanguage != "" {
		translationPool := worker.NewSharedPool(c.resolveTranslationWorkers())
		translator := translate.NewTranslator(c.llmCap, translationPool)
		segments = translator.Translate(ctx, opID, segments, req.TargetLanguage,
			config.ProgressTranscribeEnd, translateEnd, wrapStage(progress, "translate"))

		if doReview {
			reviewer := review.NewReviewer(c.llmCap)
			segments = reviewer.Review(ctx, opID, segments, req.TargetLanguage,
				translateEnd, config.ProgressReviewEnd, wrapStage(progress, "review"))
		}
	}

	// --- Stage: finalize (95-100) ---
	mode := req.SubtitleMode
	if mode == "" {
		mode = subtitlefmt.ModeOriginal
	}
	result.Segments = segments
	result.SubtitleDoc = subtitlefmt.Document(segments, mode)

	if req.Dub {
		dubEngine := dub.NewEngine(c.ttsCap, c.media, tempDir, c.settings.ResolveCompressionRatio())
		videoPathArg := ""
		if isVideoContainer(req.MediaPath) {
			videoPathArg = req.MediaPath
		}
		audioOut, mediaOut, err := dubEngine.DubMedia(ctx, opID, segments, videoPathArg, req.DubVoice, req.DubFormat,
			req.AmbientMix, config.ProgressFinalizeStart, config.ProgressFinalizeEnd, wrapStage(progress, "dub"))
		if err != nil {
			log.Warn("dub stage failed", "error", err)
			return result, err
		}
		result.DubbedAudioPath = audioOut
		result.DubbedMediaPath = mediaOut
	}

	progress(model.ProgressEvent{Percent: config.ProgressFinalizeEnd, Stage: "complete"})
	return result, nil
}

func (c *Coordinator) runVAD(ctx context.Context, opID, audioPath string) ([]model.Interval, error) {
	pcm, err := c.media.DecodePCMMono16k(ctx, opID, audioPath)
	if err != nil {
		return nil, err
	}
	defer pcm.Close()

	detector := vad.NewDetector(c.vadConfig)
	return detector.DetectIntervals(ctx, opID, pcm)
}

func (c *Coordinator) resolveWhisperParallel() int {
	if c.settings.WhisperParallel > 0 {
		return c.settings.WhisperParallel
	}
	return config.DefaultWhisperParallel
}

func (c *Coordinator) resolveTranslationWorkers() int {
	if c.settings.TranslationWorkers > 0 {
		return c.settings.TranslationWorkers
	}
	return config.DefaultTranslationWorkers
}

// wrapStage tags every event from a sub-stage with its name unless the
// sub-stage already set one more specific (e.g. "transcribe-chunk-failed"),
// implementing spec §4.9's "progress events are idempotent-safe."
func wrapStage(progress model.ProgressFunc, stage string) model.ProgressFunc {
	return func(ev model.ProgressEvent) {
		if ev.Stage == "" {
			ev.Stage = stage
		}
		progress(ev)
	}
}

// mustKind classifies err for the Fatal() check; an error with no Kind at
// all (should not happen for anything the core returns) is treated as
// fatal rather than silently swallowed.
func mustKind(err error) pipeerr.Kind {
	k, ok := pipeerr.KindOf(err)
	if !ok {
		return pipeerr.Cancelled
	}
	return k
}

func isVideoContainer(path string) bool {
	switch filepath.Ext(path) {
	case ".mp4", ".mkv", ".mov", ".webm", ".avi":
		return true
	default:
		return false
	}
}
