package repositories

import "context"

// VoiceConfig selects the voice used for synthesis. Empty fields fall back to
// the adapter defaults.
type VoiceConfig struct {
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	// SynthesizeAudio returns the complete encoded audio for text.
	SynthesizeAudio(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
	// AudioMimeType is the mime type of the audio SynthesizeAudio returns.
	AudioMimeType() string
}

// Voice describes one voice offered by a synthesis provider.
type Voice struct {
	Name          string   `json:"name"`
	LanguageCodes []string `json:"languageCodes"`
	Gender        string   `json:"gender,omitempty"`
}

// VoiceLister is implemented by synthesis providers that can enumerate voices.
type VoiceLister interface {
	ListVoices(ctx context.Context, language string) ([]Voice, error)
}
