// Package provider supplies concrete, HTTP/subprocess-backed
// implementations of the internal/capability interfaces, selected by
// config.Settings (the "policy object" spec §6 defers provider selection
// to). Grounded per-provider in DESIGN.md.
package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"dubcore/internal/capability"
	"dubcore/internal/pipeerr"
)

// openAIAudioClient is the subset of *openai.Client this provider needs,
// mirrored from alnah-go-transcript/transcriber.go's audioTranscriber
// interface so a mock can be injected in tests.
type openAIAudioClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIASR implements capability.ASR against OpenAI's Whisper
// transcription endpoint, adapted from alnah-go-transcript's
// OpenAITranscriber: verbose_json response format exposes per-segment
// avg_logprob/no_speech_prob, which feeds spec §4.3's word-filter branch.
type OpenAIASR struct {
	client   openAIAudioClient
	model    string
	language string
}

func NewOpenAIASR(client *openai.Client, model, language string) *OpenAIASR {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIASR{client: client, model: model, language: language}
}

func (p *OpenAIASR) Transcribe(ctx context.Context, clipPath string, promptContext string) (capability.ASRResult, error) {
	req := openai.AudioRequest{
		Model:                  p.model,
		FilePath:               clipPath,
		Prompt:                 promptContext,
		Language:               p.language,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularityWord, openai.TranscriptionTimestampGranularitySegment},
	}

	resp, err := p.client.CreateTranscription(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return capability.ASRResult{}, pipeerr.New(pipeerr.Cancelled, "", "asr-openai", ctx.Err())
		}
		return capability.ASRResult{}, pipeerr.New(pipeerr.ASRChunkFailed, "", "asr-openai", fmt.Errorf("openai transcription: %w", err))
	}

	out := capability.ASRResult{Text: resp.Text, Language: resp.Language}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, capability.ASRSegment{
			Start:        seg.Start,
			End:          seg.End,
			Text:         seg.Text,
			HasScores:    true,
			AvgLogprob:   seg.AvgLogprob,
			NoSpeechProb: seg.NoSpeechProb,
		})
	}
	for _, w := range resp.Words {
		out.Words = append(out.Words, capability.ASRWord{Text: w.Word, Start: w.Start, End: w.End})
	}
	return out, nil
}
