// Package config holds the fixed numeric constants the pipeline is specified
// against (see spec §6) plus layered runtime Settings (settings.go).
package config

import "time"

// Worker pool sizing (spec §5, §6).
const (
	DefaultWhisperParallel    = 3
	DefaultTranslationWorkers = 4
	TranscriptionBatchSize    = 50
)

// Chunk planning (spec §4.2).
const (
	MinChunkDurationSec = 8.0
	MaxChunkDurationSec = 15.0
	PrePadSec           = 0.10
	PostPadSec          = 0.15
	MergeGapSec         = 0.5
	MaxSpeechlessSec    = 15.0

	VADNormalizationMinGapSec      = 0.5
	VADNormalizationMinDurationSec = 0.1
)

// Segment grouping (spec §4.3).
const (
	SegmentMinWords       = 3
	SegmentMaxDurationSec = 8.0
	SegmentMaxWords       = 12

	ASRNoSpeechProbMax = 0.7
	ASRAvgLogprobMin   = -4.5
)

// Gap repair (spec §4.4).
const (
	GapSec                 = 3.0
	GapDedupeMergeSlackSec = 0.01
	MaxGapRepairIterations = 2
	GapRepairContextWords  = 40
	GapRepairContextN      = 3
)

// Translation (spec §4.5).
const (
	TranslationBatchSize   = 10
	TranslationContextN    = 8
	MaxPromptChars         = 600
	TranslationMaxRetries  = 3
	TranslationBackoffBase = time.Second
)

// Review (spec §4.6).
const (
	ReviewBatchSize   = 50
	ReviewOverlapCtx  = 8
	ReviewStep        = ReviewBatchSize - ReviewOverlapCtx
	ReviewMinCoverage = 0.90
)

// Subtitle finalization (spec §4.7).
const (
	MaxGapToFuseSec         = 0.3
	OrphanMinWords          = 4
	SubtitleGapThresholdSec = 5.0
)

// Dub alignment (spec §4.8). MaxDubCompressionRatio is also exposed as a
// runtime Settings field (config.Settings.MaxDubCompressionRatio) per the
// Open Question in spec §9 — the constants below are the two named
// provider defaults, not a single hardcoded value.
const (
	MinDubSilenceGapSec         = 0.15
	MaxDubCompressionRatioA     = 1.35
	MaxDubCompressionRatioB     = 1.8
	CompressionTolerance        = 0.05
	AtempoMin                   = 0.5
	AtempoMax                   = 2.0
	EndToEndRetimeDriftThreshold = 0.03
)

// Pipeline progress bands (spec §4.9).
const (
	ProgressExtractStart = 0
	ProgressExtractEnd   = 10

	ProgressTranscribeStart = 10
	ProgressTranscribeEnd   = 50

	ProgressTranslateWithReviewEnd    = 75
	ProgressTranslateWithoutReviewEnd = 95

	ProgressReviewEnd = 95

	ProgressFinalizeStart = 95
	ProgressFinalizeEnd   = 100
)

// Audio/media.
const (
	PCMSampleRateHz = 16000
	VADFrameMs      = 30
)

// Timeouts (spec §5).
const (
	ExecTimeoutFFmpeg            = 10 * time.Minute
	ExecTimeoutWhisper           = 30 * time.Minute
	ProviderStreamSilenceTimeout = 60 * time.Second
)
