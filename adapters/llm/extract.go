package llm

import (
	"strings"

	"google.golang.org/genai"
)

// extraction pulls reply text out of a response shape. Strategies are tried in
// the order of textStrategies until one yields non-blank text.
type extraction struct {
	name    string
	extract func(*genai.GenerateContentResponse) string
}

var textStrategies = []extraction{
	{name: "response_text", extract: responseText},
	{name: "first_candidate_parts", extract: firstCandidateParts},
	{name: "any_candidate_parts", extract: anyCandidateParts},
}

func extractText(response *genai.GenerateContentResponse) (text string, strategy string) {
	if response == nil {
		return "", ""
	}
	for _, s := range textStrategies {
		if text := strings.TrimSpace(s.extract(response)); text != "" {
			return text, s.name
		}
	}
	return "", ""
}

// responseText uses the SDK accessor for the first candidate.
func responseText(response *genai.GenerateContentResponse) string {
	return response.Text()
}

func firstCandidateParts(response *genai.GenerateContentResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	return partsText(response.Candidates[0].Content)
}

func anyCandidateParts(response *genai.GenerateContentResponse) string {
	for _, candidate := range response.Candidates {
		if text := partsText(candidate.Content); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func partsText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
