package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

const (
	defaultGoogleVoice = "en-US-Chirp3-HD-Aoede"
	defaultLanguage    = "en-US"
	defaultSpeakRate   = 1.0

	// MimeTypeMP3 is the media type used in data URLs for MP3 replies.
	MimeTypeMP3 = "audio/mp3"
)

// DefaultFallbackVoices are tried in order when the requested Google voice
// does not exist.
var DefaultFallbackVoices = []string{
	"en-US-Chirp3-HD-Aoede",
	"en-US-Chirp3-HD-Achernar",
	"en-US-Chirp3-HD-Zephyr",
	"en-US-Neural2-D",
	"en-US-Neural2-C",
	"en-US-Standard-D",
}

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("text cannot be empty")

// synthesizer is the subset of the Text-to-Speech client used here.
type synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

// GoogleTextToSpeech implements TextToSpeech using Google Cloud Text-to-Speech
type GoogleTextToSpeech struct {
	client       synthesizer
	defaultVoice string
	logger       *zap.Logger
}

// Ensure GoogleTextToSpeech implements the TextToSpeech interface
var (
	_ repositories.TextToSpeech = (*GoogleTextToSpeech)(nil)
	_ repositories.VoiceLister  = (*GoogleTextToSpeech)(nil)
)

// NewGoogleTextToSpeech dials the Text-to-Speech API.
func NewGoogleTextToSpeech(ctx context.Context, defaultVoice string, logger *zap.Logger, opts ...option.ClientOption) (*GoogleTextToSpeech, error) {
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	return newGoogleTextToSpeech(client, defaultVoice, logger), nil
}

func newGoogleTextToSpeech(client synthesizer, defaultVoice string, logger *zap.Logger) *GoogleTextToSpeech {
	if defaultVoice == "" {
		defaultVoice = defaultGoogleVoice
		logger.Info("Using default voice", zap.String("voice", defaultVoice))
	}
	return &GoogleTextToSpeech{client: client, defaultVoice: defaultVoice, logger: logger}
}

// SynthesizeAudio converts text into MP3 audio with the requested voice.
func (g *GoogleTextToSpeech) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	name := voice.Voice
	if name == "" {
		name = g.defaultVoice
	}
	language := languageForVoice(name, voice.Language)

	g.logger.Info("Synthesizing speech",
		zap.String("voice", name),
		zap.String("language", language),
		zap.Int("textLength", len(text)))

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  defaultSpeakRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech with voice %s: %w", name, err)
	}

	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio content returned for voice %s", name)
	}
	return audio, nil
}

// AudioMimeType implements repositories.TextToSpeech
func (g *GoogleTextToSpeech) AudioMimeType() string {
	return MimeTypeMP3
}

// ListVoices returns the voices available for language, or all voices when
// language is empty.
func (g *GoogleTextToSpeech) ListVoices(ctx context.Context, language string) ([]repositories.Voice, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: language})
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	voices := make([]repositories.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		voices = append(voices, repositories.Voice{
			Name:          v.GetName(),
			LanguageCodes: v.GetLanguageCodes(),
			Gender:        strings.ToLower(v.GetSsmlGender().String()),
		})
	}
	return voices, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleTextToSpeech) Close() error {
	return g.client.Close()
}

// languageForVoice reads the language from names like "en-US-Neural2-D".
func languageForVoice(name, fallback string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) == 3 && len(parts[0]) >= 2 && len(parts[1]) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	if fallback != "" {
		return fallback
	}
	return defaultLanguage
}
