package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

// silenceThreshold is the payload size below which the mock hears nothing.
const silenceThreshold = 1000

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	// Mock transcription based on audio size
	switch {
	case len(audioData) > 100000:
		return "Can you tell me a short story about the ocean?", nil
	case len(audioData) > 10000:
		return "What time is it?", nil
	case len(audioData) > silenceThreshold:
		return "Hello there!", nil
	default:
		return "", nil
	}
}
