package dub

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/logger"
	"dubcore/internal/media"
	"dubcore/internal/model"
	"dubcore/internal/pipeerr"
)

// Engine implements dub_media(segments, media_path?, voice, ambient_mix,
// cancel, progress) -> (audio_path, media_path?) (spec §4.8).
type Engine struct {
	tts                 capability.TTS
	media               *media.Service
	tempDir             string
	maxCompressionRatio float64

	fitted map[int]*fittedClip
}

func NewEngine(tts capability.TTS, mediaSvc *media.Service, tempDir string, maxCompressionRatio float64) *Engine {
	if maxCompressionRatio <= 0 {
		maxCompressionRatio = config.MaxDubCompressionRatioA
	}
	return &Engine{tts: tts, media: mediaSvc, tempDir: tempDir, maxCompressionRatio: maxCompressionRatio}
}

// DubMedia runs the full C8 pipeline and returns the path to the mixed
// voice track (and, when videoPath is non-empty, the muxed final media).
func (e *Engine) DubMedia(ctx context.Context, opID string, segments []model.Segment, videoPath, voice, format string, ambientMix float64, bandStart, bandEnd int, progress model.ProgressFunc) (audioPath, mediaPath string, err error) {
	if progress == nil {
		progress = model.NoopProgress
	}
	if len(segments) == 0 {
		return "", "", nil
	}

	plans := BuildPlans(segments)

	clips, err := e.synthesizeAll(ctx, opID, plans, voice, format, bandStart, bandEnd, progress)
	if err != nil {
		return "", "", err
	}

	if err := e.fitAll(ctx, opID, plans, clips, format); err != nil {
		return "", "", err
	}

	voiceTrack, err := e.assembleTimeline(ctx, opID, plans, clips)
	if err != nil {
		return "", "", err
	}

	mediaDuration := segments[len(segments)-1].End
	voiceTrack, err = e.retimeIfDrifted(ctx, opID, voiceTrack, mediaDuration)
	if err != nil {
		return "", "", err
	}

	finalAudio, err := e.mixWithOriginal(ctx, opID, voiceTrack, videoPath, ambientMix)
	if err != nil {
		return "", "", err
	}

	progress(model.ProgressEvent{Percent: bandEnd, Stage: "dub"})

	if videoPath == "" {
		return finalAudio, "", nil
	}

	outMedia := filepath.Join(e.tempDir, fmt.Sprintf("dubbed_%s.mp4", opID))
	if err := e.media.Mux(ctx, opID, videoPath, finalAudio, outMedia); err != nil {
		return finalAudio, "", err
	}
	return finalAudio, outMedia, nil
}

// synthesizeAll implements spec §4.8 step 2: sequential batches of size
// BatchSize(N), one TTS request per batch.
func (e *Engine) synthesizeAll(ctx context.Context, opID string, plans []model.DubPlan, voice, format string, bandStart, bandEnd int, progress model.ProgressFunc) (map[int]capability.TTSClipOutput, error) {
	clips := make(map[int]capability.TTSClipOutput, len(plans))
	batchSize := BatchSize(len(plans))

	for start := 0; start < len(plans); start += batchSize {
		if ctx.Err() != nil {
			return clips, pipeerr.New(pipeerr.Cancelled, opID, "dub-tts", ctx.Err())
		}
		end := start + batchSize
		if end > len(plans) {
			end = len(plans)
		}

		var inputs []capability.TTSSegmentInput
		for _, p := range plans[start:end] {
			text := p.Translation
			if text == "" {
				text = p.Source
			}
			inputs = append(inputs, capability.TTSSegmentInput{
				Index: p.SegmentIndex, Translation: text, Original: p.Source,
				TargetDurationSec: p.TargetDurationSec,
			})
		}

		result, err := e.tts.Synthesize(ctx, inputs, voice, "standard", format)
		if err != nil {
			return clips, pipeerr.New(pipeerr.TTSFailed, opID, "synthesize", err)
		}
		for _, clip := range result.Segments {
			clips[clip.Index] = clip
		}

		progress(model.ProgressEvent{
			Percent: scalePercent(end, len(plans), bandStart, bandEnd), Stage: "dub-synthesize",
			Current: end, Total: len(plans), HasCurrentTotal: true,
		})
	}
	return clips, nil
}

type fittedClip struct {
	path       string
	atempoExpr string
	slot       float64
}

// fitAll implements spec §4.8 step 3: measure each clip, extend slots
// where possible, compress the remainder, and re-anchor per step 3d. A
// clip missing from the TTS response (or one whose bytes can't be written
// or measured) falls back to a generated silent clip filling its slot, so
// the segment keeps its place on the timeline instead of leaving a hole
// downstream consumers would have to special-case; only a failure in the
// silence fallback itself (e.g. ffmpeg unavailable) skips the segment.
func (e *Engine) fitAll(ctx context.Context, opID string, plans []model.DubPlan, clips map[int]capability.TTSClipOutput, format string) error {
	fitted := make(map[int]*fittedClip, len(clips))

	for i := range plans {
		clip, ok := clips[i]
		if !ok {
			logger.WithOp(opID).Warn("missing dub clip payload, substituting silence", "segment_index", i)
			if f := e.silenceFallback(ctx, opID, plans, i); f != nil {
				fitted[i] = f
			}
			continue
		}

		rawPath := filepath.Join(e.tempDir, fmt.Sprintf("dubclip_raw_%s_%04d.%s", opID, i, extOf(format)))
		if err := os.WriteFile(rawPath, clip.AudioBytes, 0o644); err != nil {
			logger.WithOp(opID).Warn("failed to write raw dub clip, substituting silence", "error", err, "segment_index", i)
			if f := e.silenceFallback(ctx, opID, plans, i); f != nil {
				fitted[i] = f
			}
			continue
		}

		measured, err := e.media.ProbeDuration(ctx, opID, rawPath)
		if err != nil {
			logger.WithOp(opID).Warn("failed to measure dub clip duration, substituting silence", "error", err, "segment_index", i)
			if f := e.silenceFallback(ctx, opID, plans, i); f != nil {
				fitted[i] = f
			}
			continue
		}

		atempoExpr, slot := fitClip(plans, i, measured, e.maxCompressionRatio)
		fitted[i] = &fittedClip{path: rawPath, atempoExpr: atempoExpr, slot: slot}
	}

	for i, f := range fitted {
		if f.atempoExpr == "" {
			continue
		}
		stretchedPath := filepath.Join(e.tempDir, fmt.Sprintf("dubclip_stretched_%s_%04d.wav", opID, i))
		if err := e.media.RunFilterGraph(ctx, opID, []string{f.path}, f.atempoExpr, stretchedPath); err != nil {
			logger.WithOp(opID).Warn("atempo stretch failed, falling back to uncompressed clip", "error", err, "segment_index", i)
			continue
		}
		f.path = stretchedPath
	}

	for i, f := range fitted {
		plans[i].Start = math.Max(0, plans[i].OriginalStart) // re-anchor (step 3d)
		plans[i].TargetDurationSec = f.slot
		plans[i].Translation = "" // freed; only path/slot matter from here
	}
	e.fitted = fitted
	return nil
}

// silenceFallback generates a silent clip filling plan i's current slot
// (spec §4.8 step 3's "missing clip payloads are skipped and logged" path,
// softened: a silent placeholder keeps the segment's timeline position
// rather than dropping it outright). Returns nil, logging, if even that
// fails — the genuine last resort.
func (e *Engine) silenceFallback(ctx context.Context, opID string, plans []model.DubPlan, i int) *fittedClip {
	slot := plans[i].TargetDurationSec
	path := filepath.Join(e.tempDir, fmt.Sprintf("dubclip_silence_%s_%04d.wav", opID, i))
	if err := e.media.GenerateSilence(ctx, opID, slot, path); err != nil {
		logger.WithOp(opID).Warn("silence fallback failed, dropping segment from dub timeline", "error", err, "segment_index", i)
		return nil
	}
	return &fittedClip{path: path, slot: slot}
}

// assembleTimeline implements spec §4.8 step 4: per-clip
// adelay/apad/atrim/asetpts sub-graphs mixed with amix into one voice
// track.
func (e *Engine) assembleTimeline(ctx context.Context, opID string, plans []model.DubPlan, _ map[int]capability.TTSClipOutput) (string, error) {
	type indexedPlan struct {
		plan model.DubPlan
		clip *fittedClip
	}
	var ordered []indexedPlan
	for i, p := range plans {
		if f, ok := e.fitted[i]; ok {
			ordered = append(ordered, indexedPlan{plan: p, clip: f})
		}
	}
	if len(ordered) == 0 {
		return "", pipeerr.New(pipeerr.DubFitFailed, opID, "assemble", fmt.Errorf("no dub clips available"))
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].plan.Start < ordered[j].plan.Start })

	// Every sub-graph is trimmed to the full timeline length (the latest
	// start+slot of any clip), so a delayed clip is never cut off.
	totalSec := 0.0
	for _, op := range ordered {
		totalSec = math.Max(totalSec, op.plan.Start+op.clip.slot)
	}

	var inputs []string
	var filterParts []string
	var mixLabels []string
	for idx, op := range ordered {
		delayMs := int(math.Round(op.plan.Start * 1000))
		totalMs := totalSec * 1000
		inputs = append(inputs, op.clip.path)
		label := fmt.Sprintf("v%d", idx)
		filterParts = append(filterParts, fmt.Sprintf(
			"[%d:a]adelay=%d|%d,apad,atrim=0:%.3f,asetpts=N/SR/TB[%s]",
			idx, delayMs, delayMs, totalMs/1000, label,
		))
		mixLabels = append(mixLabels, "["+label+"]")
	}

	filterExpr := ""
	for _, p := range filterParts {
		filterExpr += p + ";"
	}
	for _, l := range mixLabels {
		filterExpr += l
	}
	filterExpr += fmt.Sprintf("amix=inputs=%d:dropout_transition=0:normalize=0[voiceout]", len(ordered))

	out := filepath.Join(e.tempDir, fmt.Sprintf("voice_track_%s.wav", opID))
	if err := e.media.RunFilterGraph(ctx, opID, inputs, filterExpr, out, "-map", "[voiceout]"); err != nil {
		return "", pipeerr.New(pipeerr.DubFitFailed, opID, "assemble", err)
	}
	return out, nil
}

// retimeIfDrifted implements spec §4.8 step 5: if the voice track is
// longer than mediaDuration by more than EndToEndRetimeDriftThreshold,
// shrink it with a composed atempo chain. DubMedia passes the end time of
// the last segment as mediaDuration; the media file itself is not probed.
func (e *Engine) retimeIfDrifted(ctx context.Context, opID, voiceTrack string, mediaDuration float64) (string, error) {
	voiceDuration, err := e.media.ProbeDuration(ctx, opID, voiceTrack)
	if err != nil || mediaDuration <= 0 {
		return voiceTrack, nil
	}
	drift := (voiceDuration - mediaDuration) / mediaDuration
	if drift <= config.EndToEndRetimeDriftThreshold {
		return voiceTrack, nil
	}

	ratio := voiceDuration / mediaDuration
	out := filepath.Join(e.tempDir, fmt.Sprintf("voice_track_retimed_%s.wav", opID))
	if err := e.media.RunFilterGraph(ctx, opID, []string{voiceTrack}, atempoChain(ratio), out); err != nil {
		logger.WithOp(opID).Warn("end-to-end retime failed, keeping drifted track", "error", err)
		return voiceTrack, nil
	}
	return out, nil
}

// mixWithOriginal implements spec §4.8 step 6's volume/weight formulas.
func (e *Engine) mixWithOriginal(ctx context.Context, opID, voiceTrack, videoPath string, ambientMix float64) (string, error) {
	mix := clamp01(ambientMix)

	if videoPath == "" || mix <= 0.001 {
		return voiceTrack, nil
	}

	backgroundVolume := 0.0
	if mix > 0.001 {
		backgroundVolume = 0.20 + mix*0.35
	}
	voiceVolume := 0.0
	voiceActive := (1 - mix) > 0.001
	if voiceActive {
		voiceVolume = 1.25 + (1-mix)*0.35
	}
	ambientWeight := 0.0
	if mix > 0.001 {
		ambientWeight = (0.5 + mix) * mix
	}
	voiceWeight := 0.0
	if voiceActive {
		voiceWeight = 2.0 * (1 - mix)
	}
	normalize := 0
	if mix > 0.001 && voiceActive {
		normalize = 1
	}

	out := filepath.Join(e.tempDir, fmt.Sprintf("mixed_%s.wav", opID))
	filterExpr := fmt.Sprintf(
		"[0:a]volume=%.4f[bg];[1:a]volume=%.4f[fg];[bg][fg]amix=inputs=2:weights=%.4f %.4f:normalize=%d[mixout]",
		backgroundVolume, voiceVolume, ambientWeight, voiceWeight, normalize,
	)
	if err := e.media.RunFilterGraph(ctx, opID, []string{videoPath, voiceTrack}, filterExpr, out, "-map", "[mixout]"); err != nil {
		return "", pipeerr.New(pipeerr.DubFitFailed, opID, "mix", err)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extOf(format string) string {
	if format == "" {
		return "wav"
	}
	return format
}

func scalePercent(done, total, bandStart, bandEnd int) int {
	if total == 0 {
		return bandEnd
	}
	span := bandEnd - bandStart
	return bandStart + done*span/total
}
