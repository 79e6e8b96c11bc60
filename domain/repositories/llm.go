package repositories

import "context"

// LargeLanguageModel abstracts any text generation provider
type LargeLanguageModel interface {
	// Generate takes the user's transcript and returns the model's reply
	Generate(ctx context.Context, prompt string) (string, error)
}
