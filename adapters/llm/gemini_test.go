package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

var _ repositories.LargeLanguageModel = &MockGeminiClient{}

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func TestValidateGeminiConfig(t *testing.T) {
	if err := ValidateGeminiConfig(GeminiConfig{}); err == nil {
		t.Error("Expected error without API key or project")
	}

	if err := ValidateGeminiConfig(GeminiConfig{APIKey: "k", TopP: 1.5}); err == nil {
		t.Error("Expected error for topP out of range")
	}

	if err := ValidateGeminiConfig(GeminiConfig{ProjectID: "p", Temperature: 0.7}); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestGeminiLLM_GenerateAppliesDefaults(t *testing.T) {
	fake := &fakeModels{resp: textResponse("It is ", "noon.")}
	g := newGeminiLLM(fake, GeminiConfig{APIKey: "k"}, zaptest.NewLogger(t))

	reply, err := g.Generate(context.Background(), "what time is it")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if reply != "It is noon." {
		t.Errorf("Expected 'It is noon.', got '%s'", reply)
	}

	if fake.model != defaultModel {
		t.Errorf("Expected model %s, got %s", defaultModel, fake.model)
	}
	if fake.config.MaxOutputTokens != defaultMaxOutputTokens {
		t.Errorf("Expected %d max tokens, got %d", defaultMaxOutputTokens, fake.config.MaxOutputTokens)
	}
	if fake.config.SystemInstruction == nil || !strings.Contains(fake.config.SystemInstruction.Parts[0].Text, "plain") {
		t.Error("Expected plain-prose system instruction")
	}
	if len(fake.contents) != 1 || fake.contents[0].Parts[0].Text != "what time is it" {
		t.Errorf("Expected transcript as the sole content, got %v", fake.contents)
	}
}

func TestGeminiLLM_FallbackOnEmptyOutput(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{}}
	g := newGeminiLLM(fake, GeminiConfig{APIKey: "k"}, zap.NewNop())

	reply, err := g.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != FallbackResponse {
		t.Errorf("Expected fallback response, got '%s'", reply)
	}
}

func TestGeminiLLM_PropagatesProviderError(t *testing.T) {
	fake := &fakeModels{err: errors.New("quota exceeded")}
	g := newGeminiLLM(fake, GeminiConfig{APIKey: "k"}, zap.NewNop())

	if _, err := g.Generate(context.Background(), "hello"); err == nil {
		t.Error("Expected provider error to propagate")
	}
}

func TestExtractText_StrategyOrder(t *testing.T) {
	// First candidate is empty, second carries text.
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "from second"}}}},
		},
	}

	text, strategy := extractText(resp)
	if text != "from second" {
		t.Errorf("Expected 'from second', got '%s'", text)
	}
	if strategy != "any_candidate_parts" {
		t.Errorf("Expected any_candidate_parts strategy, got %s", strategy)
	}

	if text, _ := extractText(nil); text != "" {
		t.Errorf("Expected empty text for nil response, got '%s'", text)
	}
}

func TestMockGeminiClient(t *testing.T) {
	reply, err := NewMockGeminiClient().Generate(context.Background(), "What time is it?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(reply, "What time is it") {
		t.Errorf("Expected reply to echo the prompt, got '%s'", reply)
	}
}

func TestPreview_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "hello", "hello"},
		{"ascii", strings.Repeat("a", 60), strings.Repeat("a", 50)},
		// 49 ASCII bytes leave only one byte for a two-byte rune.
		{"two byte rune at limit", strings.Repeat("a", 49) + "é tail", strings.Repeat("a", 49)},
		// Three-byte runes: 16 fit in 48 bytes, the 17th would end at 51.
		{"cjk", strings.Repeat("語", 20), strings.Repeat("語", 16)},
		{"emoji", strings.Repeat("a", 48) + "🎙️ recording", strings.Repeat("a", 48)},
	}

	for _, tt := range tests {
		got := preview(tt.in)
		if !utf8.ValidString(got) {
			t.Errorf("%s: expected valid UTF-8, got %q", tt.name, got)
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
		if len(got) > 50 {
			t.Errorf("%s: expected at most 50 bytes, got %d", tt.name, len(got))
		}
	}
}
