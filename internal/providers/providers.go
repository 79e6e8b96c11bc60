// Package providers builds the speech, language and synthesis adapters
// selected by configuration.
package providers

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sameerkhansf/vapi-takehome/adapters/llm"
	"github.com/sameerkhansf/vapi-takehome/adapters/stt"
	"github.com/sameerkhansf/vapi-takehome/adapters/tts"
	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/config"
)

// Set is the provider trio shared by every request.
type Set struct {
	SpeechToText repositories.SpeechToText
	LLM          repositories.LargeLanguageModel
	TextToSpeech repositories.TextToSpeech

	closers []io.Closer
	logger  *zap.Logger
}

// Build creates the adapters named by cfg. Google synthesis is wrapped in the
// voice fallback.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Set, error) {
	set := &Set{logger: logger}

	opts := clientOptions(cfg)

	if err := set.buildSpeechToText(ctx, cfg, opts); err != nil {
		set.Close()
		return nil, err
	}
	if err := set.buildLLM(ctx, cfg); err != nil {
		set.Close()
		return nil, err
	}
	if err := set.buildTextToSpeech(ctx, cfg, opts); err != nil {
		set.Close()
		return nil, err
	}

	logger.Info("Providers initialized",
		zap.String("stt", cfg.STTProvider),
		zap.String("llm", cfg.LLMProvider),
		zap.String("tts", cfg.TTSProvider))
	return set, nil
}

// BuildTextToSpeech creates only the synthesis adapter, for tools that never
// transcribe or generate.
func BuildTextToSpeech(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Set, error) {
	set := &Set{logger: logger}
	if err := set.buildTextToSpeech(ctx, cfg, clientOptions(cfg)); err != nil {
		set.Close()
		return nil, err
	}
	return set, nil
}

func clientOptions(cfg *config.Config) []option.ClientOption {
	if cfg.GoogleCredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsFile)}
}

func (s *Set) buildSpeechToText(ctx context.Context, cfg *config.Config, opts []option.ClientOption) error {
	switch cfg.STTProvider {
	case config.ProviderMock:
		s.SpeechToText = stt.NewMockSpeechToText(s.logger)
	case config.ProviderGoogle:
		client, err := stt.NewGoogleSpeechToText(ctx, s.logger, opts...)
		if err != nil {
			return err
		}
		s.SpeechToText = client
		s.closers = append(s.closers, client)
	default:
		return fmt.Errorf("unsupported STT provider %q", cfg.STTProvider)
	}
	return nil
}

func (s *Set) buildLLM(ctx context.Context, cfg *config.Config) error {
	switch cfg.LLMProvider {
	case config.ProviderMock:
		s.LLM = llm.NewMockGeminiClient()
	case config.ProviderGemini:
		client, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:          cfg.GeminiAPIKey,
			ProjectID:       cfg.GoogleProjectID,
			Location:        cfg.GoogleLocation,
			Model:           cfg.GeminiModel,
			Temperature:     cfg.GeminiTemperature,
			TopP:            cfg.GeminiTopP,
			MaxOutputTokens: int(cfg.GeminiMaxTokens),
		}, s.logger)
		if err != nil {
			return err
		}
		s.LLM = client
	default:
		return fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
	return nil
}

func (s *Set) buildTextToSpeech(ctx context.Context, cfg *config.Config, opts []option.ClientOption) error {
	switch cfg.TTSProvider {
	case config.ProviderMock:
		s.TextToSpeech = tts.NewMockTextToSpeech(s.logger)
	case config.ProviderElevenLabs:
		elevenLabsConfig := tts.NewElevenLabsConfigFromEnv()
		if cfg.TTSVoice != "" {
			elevenLabsConfig.VoiceID = cfg.TTSVoice
		}
		client, err := tts.NewElevenLabsTTS(elevenLabsConfig, s.logger)
		if err != nil {
			return err
		}
		s.TextToSpeech = client
	case config.ProviderGoogle:
		client, err := tts.NewGoogleTextToSpeech(ctx, cfg.TTSVoice, s.logger, opts...)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client)

		voices := cfg.TTSFallbackVoices
		if len(voices) == 0 {
			voices = tts.DefaultFallbackVoices
		}
		s.TextToSpeech = tts.NewVoiceFallback(client, cfg.TTSVoice, voices, s.logger)
	default:
		return fmt.Errorf("unsupported TTS provider %q", cfg.TTSProvider)
	}
	return nil
}

// Close releases the gRPC connections held by Google clients.
func (s *Set) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("Failed to close provider client", zap.Error(err))
		}
	}
	s.closers = nil
}
