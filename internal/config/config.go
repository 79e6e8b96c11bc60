package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by the *_PROVIDER variables.
const (
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"
)

const (
	defaultPort          = "8080"
	defaultLocation      = "us-central1"
	defaultLanguage      = "en-US"
	defaultModel         = "gemini-2.0-flash-lite"
	defaultTemperature   = 0.7
	defaultTopP          = 0.9
	defaultMaxTokens     = 1024
	defaultMaxAudioBytes = 10 << 20

	defaultServerURL   = "http://localhost:8080"
	defaultDedupWindow = 5 * time.Second
)

// ErrMissingProjectID is reported when a Google provider is selected without a project.
var ErrMissingProjectID = errors.New("GOOGLE_CLOUD_PROJECT_ID is required for Google providers")

// Config holds the server settings.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	GoogleProjectID       string
	GoogleLocation        string
	GoogleCredentialsFile string

	STTProvider string
	STTLanguage string

	LLMProvider       string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float32
	GeminiTopP        float32
	GeminiMaxTokens   int32

	TTSProvider       string
	TTSVoice          string
	TTSFallbackVoices []string

	MaxAudioBytes int64
}

// ClientConfig holds the terminal client settings.
type ClientConfig struct {
	ServerURL   string
	ClientID    string
	DedupWindow time.Duration
	PlaybackDir string
	LogLevel    string
}

// Production reports whether APP_ENV selects production logging.
func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", defaultPort),
		AppEnv:                getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		GoogleProjectID:       os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
		GoogleLocation:        getEnv("GOOGLE_CLOUD_LOCATION", defaultLocation),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		STTProvider:           strings.ToLower(getEnv("STT_PROVIDER", ProviderGoogle)),
		STTLanguage:           getEnv("STT_LANGUAGE", defaultLanguage),
		LLMProvider:           strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", defaultModel),
		TTSProvider:           strings.ToLower(getEnv("TTS_PROVIDER", ProviderGoogle)),
		TTSVoice:              os.Getenv("TTS_VOICE"),
		TTSFallbackVoices:     splitList(os.Getenv("TTS_FALLBACK_VOICES")),
	}

	var err error
	if cfg.GeminiTemperature, err = getFloat32("GEMINI_TEMPERATURE", defaultTemperature); err != nil {
		return nil, err
	}
	if cfg.GeminiTopP, err = getFloat32("GEMINI_TOP_P", defaultTopP); err != nil {
		return nil, err
	}
	maxTokens, err := getInt("GEMINI_MAX_OUTPUT_TOKENS", defaultMaxTokens)
	if err != nil {
		return nil, err
	}
	cfg.GeminiMaxTokens = int32(maxTokens)

	if cfg.MaxAudioBytes, err = getInt("MAX_AUDIO_BYTES", defaultMaxAudioBytes); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks provider selection and the settings each provider needs.
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("unsupported STT_PROVIDER %q", c.STTProvider)
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.TTSProvider {
	case ProviderGoogle, ProviderElevenLabs, ProviderMock:
	default:
		return fmt.Errorf("unsupported TTS_PROVIDER %q", c.TTSProvider)
	}

	needsProject := c.STTProvider == ProviderGoogle ||
		c.TTSProvider == ProviderGoogle ||
		(c.LLMProvider == ProviderGemini && c.GeminiAPIKey == "")
	if needsProject && c.GoogleProjectID == "" {
		return ErrMissingProjectID
	}

	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive, got %d", c.MaxAudioBytes)
	}
	return nil
}

// LoadClient reads the terminal client settings. Flags may override them afterwards.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	window, err := getDuration("VOICE_DEDUP_WINDOW", defaultDedupWindow)
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		ServerURL:   strings.TrimRight(getEnv("VOICE_SERVER_URL", defaultServerURL), "/"),
		ClientID:    os.Getenv("VOICE_CLIENT_ID"),
		DedupWindow: window,
		PlaybackDir: getEnv("VOICE_PLAYBACK_DIR", os.TempDir()),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat32(key string, fallback float32) (float32, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return float32(f), nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
