// Package asr implements C3 (the ASR Orchestrator) and C4 (the
// Hallucination Scrubber, scrubber.go). Grounded on anilpdv-video-dubber's
// services/whisper.go / whisperkit.go channel-based worker fan-out
// (jobs chan / results chan), generalized to spec §4.3's batched,
// rolling-context scheduling atop the shared worker.SharedPool (spec §5).
package asr

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/logger"
	"dubcore/internal/media"
	"dubcore/internal/model"
	"dubcore/internal/pipeerr"
	"dubcore/internal/worker"
)

// Orchestrator implements C3's public operation, transcribe_media.
type Orchestrator struct {
	asr     capability.ASR
	media   *media.Service
	pool    *worker.SharedPool
	scrub   *Scrubber
	tempDir string
}

func NewOrchestrator(asrCap capability.ASR, mediaSvc *media.Service, pool *worker.SharedPool, scrubber *Scrubber, tempDir string) *Orchestrator {
	return &Orchestrator{asr: asrCap, media: mediaSvc, pool: pool, scrub: scrubber, tempDir: tempDir}
}

// TranscribeMedia implements spec §4.3: concurrent per-chunk transcription
// in batches of TranscriptionBatchSize, a rolling batch_context fed as a
// biasing prompt, results sorted within each batch before appending to the
// global sequence (spec §5's ordering guarantee), and per-chunk failures
// recovered via negative-percent progress.
func (o *Orchestrator) TranscribeMedia(ctx context.Context, opID, audioPath string, chunks []model.Interval, progress model.ProgressFunc) ([]model.Segment, error) {
	if progress == nil {
		progress = model.NoopProgress
	}

	var all []model.Segment
	var batchContext string
	total := len(chunks)
	done := 0

	for start := 0; start < len(chunks); start += config.TranscriptionBatchSize {
		if ctx.Err() != nil {
			sortByStart(all)
			return all, pipeerr.New(pipeerr.Cancelled, opID, "transcribe", ctx.Err())
		}

		end := start + config.TranscriptionBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		batchSegs := o.runBatch(ctx, opID, audioPath, batch, batchContext, progress)
		if o.scrub != nil {
			batchSegs = o.scrub.Scrub(ctx, opID, batchSegs)
		}
		sortByStart(batchSegs)

		all = append(all, batchSegs...)
		batchContext = rollContext(batchContext, batchSegs)

		done += len(batch)
		progress(model.ProgressEvent{
			Percent: scalePercent(done, total), Stage: "transcribe",
			Current: done, Total: total, HasCurrentTotal: true,
		})
	}

	sortByStart(all)
	return all, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, opID, audioPath string, batch []model.Interval, batchContext string, progress model.ProgressFunc) []model.Segment {
	results := make([][]model.Segment, len(batch))
	var wg sync.WaitGroup

	for i, chunk := range batch {
		i, chunk := i, chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.pool.Acquire(ctx); err != nil {
				return
			}
			defer o.pool.Release()

			segs, err := o.transcribeChunk(ctx, opID, audioPath, chunk, batchContext)
			if err != nil {
				if pipeerr.IsCancelled(err) {
					return
				}
				logger.WithOp(opID).Warn("chunk transcription failed", "error", err, "chunk_start", chunk.Start, "chunk_end", chunk.End)
				progress(model.ProgressEvent{Percent: -1, Stage: "transcribe-chunk-failed", Error: err.Error()})
				return
			}
			results[i] = segs
		}()
	}
	wg.Wait()

	var out []model.Segment
	for _, segs := range results {
		out = append(out, segs...)
	}
	return out
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, opID, audioPath string, chunk model.Interval, promptContext string) ([]model.Segment, error) {
	clipPath := filepath.Join(o.tempDir, fmt.Sprintf("chunk_%s_%.3f.wav", opID, chunk.Start))
	if err := o.media.ExtractSegment(ctx, opID, audioPath, clipPath, chunk.Start, chunk.Duration()); err != nil {
		return nil, pipeerr.New(pipeerr.ASRChunkFailed, opID, "extract-chunk", err)
	}

	result, err := o.asr.Transcribe(ctx, clipPath, promptContext)
	if err != nil {
		return nil, err
	}

	return FormSegments(result, chunk.Start), nil
}

// rollContext implements spec §4.3's "rolling batch_context (last <=600
// characters of ordered transcript text)".
func rollContext(prev string, batchSegs []model.Segment) string {
	var b strings.Builder
	b.WriteString(prev)
	for _, seg := range batchSegs {
		if seg.Original == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(seg.Original)
	}
	full := []rune(b.String())
	if len(full) <= config.MaxPromptChars {
		return string(full)
	}
	return string(full[len(full)-config.MaxPromptChars:])
}

func sortByStart(segs []model.Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}

func scalePercent(done, total int) int {
	if total == 0 {
		return config.ProgressTranscribeEnd
	}
	span := config.ProgressTranscribeEnd - config.ProgressTranscribeStart
	return config.ProgressTranscribeStart + done*span/total
}
