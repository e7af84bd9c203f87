package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"dubcore/internal/capability"
	"dubcore/internal/pipeerr"
)

type openAISpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAITTS implements capability.TTS over OpenAI's speech endpoint,
// adapted from anilpdv-video-dubber's services/openai_tts.go. The
// capability interface synthesizes a whole batch per call (spec §6); the
// real OpenAI endpoint takes one text per request, so this provider issues
// one CreateSpeech call per segment within the batch, sequentially, and
// assembles the ordered TTSResult the capability expects.
type OpenAITTS struct {
	client openAISpeechClient
	model  string
	speed  float64
}

func NewOpenAITTS(client *openai.Client, model string, speed float64) *OpenAITTS {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &OpenAITTS{client: client, model: model, speed: speed}
}

func (p *OpenAITTS) Synthesize(ctx context.Context, segments []capability.TTSSegmentInput, voice, quality, format string) (capability.TTSResult, error) {
	if voice == "" {
		voice = "alloy"
	}
	if format == "" {
		format = "mp3"
	}
	model := p.model
	if quality == "hd" {
		model = string(openai.TTSModel1HD)
	}

	result := capability.TTSResult{Format: format, Voice: voice, Model: model}
	for _, seg := range segments {
		if ctx.Err() != nil {
			return capability.TTSResult{}, pipeerr.New(pipeerr.Cancelled, "", "tts-openai", ctx.Err())
		}
		text := seg.Translation
		if text == "" {
			text = seg.Original
		}
		if text == "" {
			continue
		}

		req := openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(model),
			Input:          text,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormat(format),
			Speed:          p.speed,
		}
		resp, err := p.client.CreateSpeech(ctx, req)
		if err != nil {
			return capability.TTSResult{}, pipeerr.New(pipeerr.TTSFailed, "", "tts-openai", fmt.Errorf("segment %d: %w", seg.Index, err))
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, resp); err != nil {
			resp.Close()
			return capability.TTSResult{}, pipeerr.New(pipeerr.TTSFailed, "", "tts-openai", fmt.Errorf("segment %d: read audio: %w", seg.Index, err))
		}
		resp.Close()

		result.Segments = append(result.Segments, capability.TTSClipOutput{
			Index:             seg.Index,
			AudioBytes:        buf.Bytes(),
			TargetDurationSec: seg.TargetDurationSec,
		})
	}
	return result, nil
}
