package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings is the run-level policy object spec §6 says resolves provider
// selection and is deferred to for the Open Questions in spec §9
// (MaxDubCompressionRatio is configuration, not a guessed constant).
type Settings struct {
	TranscriptionProvider string `mapstructure:"transcription_provider"`
	LLMProvider            string `mapstructure:"llm_provider"`
	TTSProvider             string `mapstructure:"tts_provider"`

	OpenAIKey      string `mapstructure:"openai_key"`
	OpenRouterKey  string `mapstructure:"openrouter_key"`
	ElevenLabsKey  string `mapstructure:"elevenlabs_key"`
	WhisperCPPPath string `mapstructure:"whisper_cpp_path"`
	WhisperModel   string `mapstructure:"whisper_model"`

	WhisperParallel    int `mapstructure:"whisper_parallel"`
	TranslationWorkers int `mapstructure:"translation_workers"`

	// MaxDubCompressionRatio resolves spec §9's Open Question: the source
	// disagreed on 1.35 vs 1.8 across copies, so it is a Settings field
	// defaulted from the provider in use (config.MaxDubCompressionRatioA/B)
	// rather than a single hardcoded constant.
	MaxDubCompressionRatio float64 `mapstructure:"max_dub_compression_ratio"`

	AmbientMixDefault float64 `mapstructure:"ambient_mix_default"`
	RetainTempFiles   bool    `mapstructure:"retain_temp_files"`
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // "json" or "console"
}

func defaults() *Settings {
	return &Settings{
		TranscriptionProvider:  "whisper-cpp",
		LLMProvider:            "openai",
		TTSProvider:            "openai",
		WhisperModel:           "base",
		WhisperParallel:        DefaultWhisperParallel,
		TranslationWorkers:     DefaultTranslationWorkers,
		MaxDubCompressionRatio: 0, // 0: ResolveCompressionRatio picks the TTS provider's default
		AmbientMixDefault:      0.2,
		LogLevel:               "info",
		LogFormat:              "console",
	}
}

// Load layers defaults < config file < environment < CLI flags, using
// viper the way tassa-yoniso-manasi-karoto/langkit layers its settings.
func Load(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	s := defaults()

	v.SetConfigName("dubcore")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "dubcore"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DUBCORE")
	v.AutomaticEnv()

	setDefaultsFromStruct(v, s)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Flags follow cobra's dash-separated convention (--whisper-parallel)
	// while Settings/viper keys are underscore-separated (mapstructure tags
	// above); bind each flag under its underscore key rather than relying
	// on viper.BindPFlags' name-for-name default, which would silently
	// leave every dashed flag unbound.
	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	out := defaults()
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return out, nil
}

func setDefaultsFromStruct(v *viper.Viper, s *Settings) {
	v.SetDefault("transcription_provider", s.TranscriptionProvider)
	v.SetDefault("llm_provider", s.LLMProvider)
	v.SetDefault("tts_provider", s.TTSProvider)
	v.SetDefault("openai_key", s.OpenAIKey)
	v.SetDefault("openrouter_key", s.OpenRouterKey)
	v.SetDefault("elevenlabs_key", s.ElevenLabsKey)
	v.SetDefault("whisper_cpp_path", s.WhisperCPPPath)
	v.SetDefault("whisper_model", s.WhisperModel)
	v.SetDefault("whisper_parallel", s.WhisperParallel)
	v.SetDefault("translation_workers", s.TranslationWorkers)
	v.SetDefault("max_dub_compression_ratio", s.MaxDubCompressionRatio)
	v.SetDefault("ambient_mix_default", s.AmbientMixDefault)
	v.SetDefault("retain_temp_files", s.RetainTempFiles)
	v.SetDefault("log_level", s.LogLevel)
	v.SetDefault("log_format", s.LogFormat)
}

// ResolveCompressionRatio applies the provider-specific default (spec §9)
// when the caller has not overridden MaxDubCompressionRatio explicitly.
func (s *Settings) ResolveCompressionRatio() float64 {
	if s.MaxDubCompressionRatio > 0 {
		return s.MaxDubCompressionRatio
	}
	if s.TTSProvider == "elevenlabs" {
		return MaxDubCompressionRatioB
	}
	return MaxDubCompressionRatioA
}
