package provider

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"dubcore/internal/capability"
	"dubcore/internal/config"
)

// NewASR selects and constructs the capability.ASR backend named by
// settings.TranscriptionProvider. Grounded on alnah-go-transcript's
// cmd_transcribe.go, which resolves a single provider from validated flags
// before entering the pipeline; here the choice is a Settings field instead
// so it can also come from config file or environment.
func NewASR(settings *config.Settings) (capability.ASR, error) {
	switch settings.TranscriptionProvider {
	case "openai":
		if settings.OpenAIKey == "" {
			return nil, fmt.Errorf("transcription_provider=openai requires an OpenAI API key")
		}
		client := openai.NewClient(settings.OpenAIKey)
		return NewOpenAIASR(client, "", ""), nil
	case "whisper-cpp", "":
		if settings.WhisperCPPPath == "" {
			return nil, fmt.Errorf("transcription_provider=whisper-cpp requires whisper_cpp_path")
		}
		return NewWhisperCPPASR(settings.WhisperCPPPath, settings.WhisperModel, ""), nil
	default:
		return nil, fmt.Errorf("unknown transcription_provider %q", settings.TranscriptionProvider)
	}
}

// NewLLM selects and constructs the capability.LLM backend that serves the
// Scrubber, Translator, and Review Pass alike (spec §6: one LLM seam, three
// consumers).
func NewLLM(settings *config.Settings) (capability.LLM, error) {
	switch settings.LLMProvider {
	case "openrouter":
		if settings.OpenRouterKey == "" {
			return nil, fmt.Errorf("llm_provider=openrouter requires an OpenRouter API key")
		}
		return NewOpenRouterLLM(settings.OpenRouterKey, ""), nil
	case "openai", "":
		if settings.OpenAIKey == "" {
			return nil, fmt.Errorf("llm_provider=openai requires an OpenAI API key")
		}
		client := openai.NewClient(settings.OpenAIKey)
		return NewOpenAIChatLLM(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown llm_provider %q", settings.LLMProvider)
	}
}

// NewTTS selects and constructs the capability.TTS backend driving C8.
func NewTTS(settings *config.Settings) (capability.TTS, error) {
	switch settings.TTSProvider {
	case "elevenlabs":
		if settings.ElevenLabsKey == "" {
			return nil, fmt.Errorf("tts_provider=elevenlabs requires an ElevenLabs API key")
		}
		return NewElevenLabsTTS(settings.ElevenLabsKey, ""), nil
	case "openai", "":
		if settings.OpenAIKey == "" {
			return nil, fmt.Errorf("tts_provider=openai requires an OpenAI API key")
		}
		client := openai.NewClient(settings.OpenAIKey)
		return NewOpenAITTS(client, "", 1.0), nil
	default:
		return nil, fmt.Errorf("unknown tts_provider %q", settings.TTSProvider)
	}
}
