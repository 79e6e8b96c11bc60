package tts

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

// IsVoiceNotFound reports whether err says the requested voice does not exist.
func IsVoiceNotFound(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.NotFound:
		return true
	case codes.InvalidArgument:
		return strings.Contains(st.Message(), "does not exist")
	default:
		return false
	}
}

// VoiceFallback wraps a TextToSpeech and retries with a fixed list of voices
// when the requested one does not exist. Retries are immediate and ordered.
type VoiceFallback struct {
	next         repositories.TextToSpeech
	defaultVoice string
	voices       []string
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*VoiceFallback)(nil)

// NewVoiceFallback creates the wrapper. defaultVoice is used when a request
// names no voice; when it is empty the first fallback voice is the default.
func NewVoiceFallback(next repositories.TextToSpeech, defaultVoice string, voices []string, logger *zap.Logger) *VoiceFallback {
	if defaultVoice == "" && len(voices) > 0 {
		defaultVoice = voices[0]
	}
	return &VoiceFallback{
		next:         next,
		defaultVoice: defaultVoice,
		voices:       voices,
		logger:       logger.With(zap.String("component", "tts.fallback")),
	}
}

// SynthesizeAudio tries the requested voice, then every untried fallback voice
// in order. A primary failure other than voice-not-found is returned as is.
// When every voice fails the last error is returned.
func (f *VoiceFallback) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if voice.Voice == "" {
		voice.Voice = f.defaultVoice
	}

	audio, err := f.next.SynthesizeAudio(ctx, text, voice)
	if err == nil {
		return audio, nil
	}
	if !IsVoiceNotFound(err) {
		return nil, err
	}

	tried := map[string]bool{voice.Voice: true}
	lastErr := err
	for i, name := range f.voices {
		if tried[name] {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(lastErr, ctxErr)
		}
		tried[name] = true

		f.logger.Warn("Voice not found, trying fallback",
			zap.String("failedVoice", voice.Voice),
			zap.String("fallbackVoice", name),
			zap.Int("fallbackIndex", i),
			zap.Error(lastErr))

		audio, err := f.next.SynthesizeAudio(ctx, text, repositories.VoiceConfig{Voice: name})
		if err == nil {
			f.logger.Info("Fallback voice succeeded", zap.String("voice", name))
			return audio, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// AudioMimeType implements repositories.TextToSpeech
func (f *VoiceFallback) AudioMimeType() string {
	return f.next.AudioMimeType()
}

// ListVoices delegates to the wrapped provider when it can list voices.
func (f *VoiceFallback) ListVoices(ctx context.Context, language string) ([]repositories.Voice, error) {
	lister, ok := f.next.(repositories.VoiceLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	return lister.ListVoices(ctx, language)
}

// ErrListingUnsupported is returned when the provider cannot enumerate voices.
var ErrListingUnsupported = errors.New("voice listing is not supported by this provider")
