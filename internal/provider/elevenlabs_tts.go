package provider

import (
	"context"
	"fmt"
	"time"

	elevenlabs "github.com/tassa-yoniso-manasi-karoto/elevenlabs-go"

	"dubcore/internal/capability"
	"dubcore/internal/config"
	"dubcore/internal/pipeerr"
)

// ElevenLabsTTS implements capability.TTS over
// github.com/tassa-yoniso-manasi-karoto/elevenlabs-go, from
// tassa-yoniso-manasi-karoto/langkit's go.mod. This is "provider B" spec
// §4.8/§8 references for the 1.8 MaxDubCompressionRatio default (see
// config.Settings.ResolveCompressionRatio) — ElevenLabs' multilingual
// model tends to produce longer output per input than OpenAI TTS, which is
// why it gets a looser compression cap.
type ElevenLabsTTS struct {
	client  *elevenlabs.Client
	modelID string
}

func NewElevenLabsTTS(apiKey, modelID string) *ElevenLabsTTS {
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	client := elevenlabs.NewClient(context.Background(), apiKey, 60*time.Second)
	return &ElevenLabsTTS{client: client, modelID: modelID}
}

// ProviderBCompressionRatio is what OpenAIASR-parity callers should pass
// into config.Settings when selecting ElevenLabs, per spec §9's Open
// Question on the 1.35-vs-1.8 discrepancy.
const ProviderBCompressionRatio = config.MaxDubCompressionRatioB

func (p *ElevenLabsTTS) Synthesize(ctx context.Context, segments []capability.TTSSegmentInput, voice, quality, format string) (capability.TTSResult, error) {
	if voice == "" {
		voice = "21m00Tcm4TlvDq8ikWAM" // ElevenLabs default "Rachel" voice id
	}
	if format == "" {
		format = "mp3"
	}

	result := capability.TTSResult{Format: format, Voice: voice, Model: p.modelID}
	for _, seg := range segments {
		if ctx.Err() != nil {
			return capability.TTSResult{}, pipeerr.New(pipeerr.Cancelled, "", "tts-elevenlabs", ctx.Err())
		}
		text := seg.Translation
		if text == "" {
			text = seg.Original
		}
		if text == "" {
			continue
		}

		req := elevenlabs.TextToSpeechRequest{
			Text:    text,
			ModelID: p.modelID,
		}
		audio, err := p.client.TextToSpeech(voice, req)
		if err != nil {
			return capability.TTSResult{}, pipeerr.New(pipeerr.TTSFailed, "", "tts-elevenlabs", fmt.Errorf("segment %d: %w", seg.Index, err))
		}

		result.Segments = append(result.Segments, capability.TTSClipOutput{
			Index:             seg.Index,
			AudioBytes:        audio,
			TargetDurationSec: seg.TargetDurationSec,
		})
	}
	return result, nil
}
