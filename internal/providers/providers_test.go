package providers

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/sameerkhansf/vapi-takehome/adapters/llm"
	"github.com/sameerkhansf/vapi-takehome/adapters/stt"
	"github.com/sameerkhansf/vapi-takehome/adapters/tts"
	"github.com/sameerkhansf/vapi-takehome/internal/config"
)

func mockConfig() *config.Config {
	return &config.Config{
		STTProvider:   config.ProviderMock,
		LLMProvider:   config.ProviderMock,
		TTSProvider:   config.ProviderMock,
		MaxAudioBytes: 1 << 20,
	}
}

func TestBuild_MockProviders(t *testing.T) {
	set, err := Build(context.Background(), mockConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer set.Close()

	if _, ok := set.SpeechToText.(*stt.MockSpeechToText); !ok {
		t.Errorf("Expected mock speech-to-text, got %T", set.SpeechToText)
	}
	if _, ok := set.LLM.(*llm.MockGeminiClient); !ok {
		t.Errorf("Expected mock LLM, got %T", set.LLM)
	}
	if _, ok := set.TextToSpeech.(*tts.MockTextToSpeech); !ok {
		t.Errorf("Expected mock text-to-speech, got %T", set.TextToSpeech)
	}
}

func TestBuild_ElevenLabsRequiresKey(t *testing.T) {
	t.Setenv("ELEVEN_LABS_API_KEY", "")

	cfg := mockConfig()
	cfg.TTSProvider = config.ProviderElevenLabs

	if _, err := Build(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error without an Eleven Labs API key")
	}
}

func TestBuild_ElevenLabsUsesConfiguredVoice(t *testing.T) {
	t.Setenv("ELEVEN_LABS_API_KEY", "test-key")

	cfg := mockConfig()
	cfg.TTSProvider = config.ProviderElevenLabs
	cfg.TTSVoice = "voice-123"

	set, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer set.Close()

	if _, ok := set.TextToSpeech.(*tts.ElevenLabsTTS); !ok {
		t.Errorf("Expected Eleven Labs adapter, got %T", set.TextToSpeech)
	}
}

func TestBuild_UnknownProvider(t *testing.T) {
	tests := []func(*config.Config){
		func(c *config.Config) { c.STTProvider = "whisper" },
		func(c *config.Config) { c.LLMProvider = "gpt" },
		func(c *config.Config) { c.TTSProvider = "polly" },
	}

	for i, mutate := range tests {
		cfg := mockConfig()
		mutate(cfg)
		if _, err := Build(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
			t.Errorf("case %d: expected error for unknown provider", i)
		}
	}
}
