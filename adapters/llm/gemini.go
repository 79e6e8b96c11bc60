package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash-lite"
	defaultLocation        = "us-central1"
	defaultTemperature     = 0.7
	defaultTopP            = 0.9
	defaultMaxOutputTokens = 1024
)

// SystemInstruction keeps replies speakable: short plain prose only.
const SystemInstruction = "You are a helpful voice assistant. Your reply will be read aloud by a " +
	"speech synthesizer, so answer in plain conversational prose. Do not use markdown, " +
	"bullet points, numbered lists, headings, code blocks, emojis or any other formatting. " +
	"Keep answers concise, usually two or three sentences."

// FallbackResponse is returned when the model produces no usable text.
const FallbackResponse = "I'm sorry, I couldn't generate a response. Please try again."

// GeminiConfig holds configuration for the Gemini adapter.
// Either APIKey (Gemini API backend) or ProjectID (Vertex AI backend) is required.
type GeminiConfig struct {
	APIKey          string
	ProjectID       string
	Location        string
	Model           string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int
}

// contentGenerator is the part of genai.Models used by the adapter.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	models          contentGenerator
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	maxOutputTokens int
}

// Ensure GeminiLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" && config.ProjectID == "" {
		return fmt.Errorf("either a Gemini API key or a Google Cloud project ID is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	// Validate topP is in the valid range
	if config.TopP < 0 || config.TopP > 1 {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	return nil
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.APIKey == "" {
		location := config.Location
		if location == "" {
			location = defaultLocation
		}
		clientConfig = &genai.ClientConfig{
			Project:  config.ProjectID,
			Location: location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client.Models, config, logger), nil
}

func newGeminiLLM(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiLLM {
	// Apply defaults where needed
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
		logger.Info("Using default topP", zap.Float32("topP", topP))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxOutputTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	return &GeminiLLM{
		models:          models,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		maxOutputTokens: maxOutputTokens,
	}
}

// Generate sends the transcript as the sole user content and returns the
// model's plain-prose reply.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		TopP:              genai.Ptr(g.topP),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}

	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, strategy := extractText(response)
	if text == "" {
		g.logger.Warn("Empty response from model, using fallback", zap.String("model", g.model))
		return FallbackResponse, nil
	}

	g.logger.Info("Generated response",
		zap.String("strategy", strategy),
		zap.String("prompt_preview", preview(prompt)),
		zap.String("response_preview", preview(text)))

	return text, nil
}

// preview cuts s to at most 50 bytes without splitting a UTF-8 sequence.
func preview(s string) string {
	const limit = 50
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
