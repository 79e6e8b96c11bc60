package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

const (
	mockSampleRate  = 16000
	mockMsPerRune   = 40
	mockMaxDuration = 8000 // ms
	mockToneHz      = 440
)

// MockTextToSpeech renders a short sine tone as WAV so the pipeline can be
// exercised without provider credentials.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// SynthesizeAudio implements repositories.TextToSpeech
func (m *MockTextToSpeech) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	durationMs := len([]rune(text)) * mockMsPerRune
	if durationMs > mockMaxDuration {
		durationMs = mockMaxDuration
	}

	m.logger.Info("Synthesizing mock speech",
		zap.String("voice", voice.Voice),
		zap.Int("durationMs", durationMs))

	return sineWAV(durationMs), nil
}

// AudioMimeType implements repositories.TextToSpeech
func (m *MockTextToSpeech) AudioMimeType() string {
	return "audio/wav"
}

func sineWAV(durationMs int) []byte {
	samples := mockSampleRate * durationMs / 1000
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(mockSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(mockSampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * mockToneHz * float64(i) / mockSampleRate)
		binary.Write(&buf, binary.LittleEndian, int16(v*0.2*math.MaxInt16))
	}
	return buf.Bytes()
}
