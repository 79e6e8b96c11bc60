package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockGeminiClient is a placeholder implementation for Gemini LLM
type MockGeminiClient struct{}

// NewMockGeminiClient creates a new mock Gemini client
func NewMockGeminiClient() *MockGeminiClient {
	return &MockGeminiClient{}
}

// Generate implements repositories.LargeLanguageModel
func (g *MockGeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return FallbackResponse, nil
	}
	return fmt.Sprintf("You said: %s. I'm a mock assistant, so that is all I can tell you.", strings.TrimRight(prompt, ".?!")), nil
}
