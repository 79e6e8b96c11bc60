package voiceerr

import (
	"errors"
	"fmt"
)

// Code identifies one entry of the closed voice error taxonomy.
// The string value is what travels on the wire.
type Code string

const (
	MicrophoneAccessDenied Code = "MICROPHONE_ACCESS_DENIED"
	RecordingFailed        Code = "RECORDING_FAILED"
	TranscriptionFailed    Code = "TRANSCRIPTION_FAILED"
	AIGenerationFailed     Code = "AI_GENERATION_FAILED"
	TTSFailed              Code = "TTS_FAILED"
	NetworkError           Code = "NETWORK_ERROR"
	InvalidAudioFormat     Code = "INVALID_AUDIO_FORMAT"
	ProviderError          Code = "PROVIDER_ERROR"
)

var messages = map[Code]string{
	MicrophoneAccessDenied: "Please allow microphone access to use voice features",
	RecordingFailed:        "Failed to record audio. Please try again.",
	TranscriptionFailed:    "Failed to transcribe speech. Please speak clearly and try again.",
	AIGenerationFailed:     "Failed to generate AI response. Please try again.",
	TTSFailed:              "Failed to generate speech audio. Please try again.",
	NetworkError:           "Network error. Please check your connection and try again.",
	InvalidAudioFormat:     "Invalid audio format. Please try recording again.",
	ProviderError:          "Voice service error. Please try again later.",
}

// Message returns the fixed user-facing message for the code.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[ProviderError]
}

// Known reports whether c belongs to the taxonomy.
func (c Code) Known() bool {
	_, ok := messages[c]
	return ok
}

// Named capture failures reported by audio devices.
var (
	ErrDeviceNotAllowed = errors.New("NotAllowedError: microphone access was refused")
	ErrDeviceNotFound   = errors.New("NotFoundError: no capture device available")
)

// Error is a classified voice pipeline failure. Values are never mutated
// after construction.
type Error struct {
	Message string
	Code    Code
	Details error
}

// New builds an Error carrying the fixed message for code.
func New(code Code, details error) *Error {
	if !code.Known() {
		code = ProviderError
	}
	return &Error{
		Message: code.Message(),
		Code:    code,
		Details: details,
	}
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Details
}

// Is matches another *Error by code so callers can use errors.Is with a
// template such as New(TTSFailed, nil).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
