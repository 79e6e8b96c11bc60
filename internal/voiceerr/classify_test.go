package voiceerr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify_TypedPassesThrough(t *testing.T) {
	original := New(TTSFailed, errors.New("boom"))
	wrapped := fmt.Errorf("stage failed: %w", original)

	got := Classify(wrapped)
	if got != original {
		t.Errorf("Expected the original *Error to pass through, got %v", got)
	}
}

func TestClassify_NumericStatus(t *testing.T) {
	tests := []struct {
		name string
		code codes.Code
		want Code
	}{
		{"permission denied", codes.PermissionDenied, MicrophoneAccessDenied},
		{"invalid argument", codes.InvalidArgument, InvalidAudioFormat},
		{"unavailable", codes.Unavailable, NetworkError},
		{"other status", codes.Internal, ProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("recognize: %w", status.Error(tt.code, "provider said no"))
			got := Classify(err)
			if got.Code != tt.want {
				t.Errorf("Expected code %s, got %s", tt.want, got.Code)
			}
			if got.Message != tt.want.Message() {
				t.Errorf("Expected fixed message %q, got %q", tt.want.Message(), got.Message)
			}
			if got.Details == nil {
				t.Error("Expected details to keep the raw error")
			}
		})
	}
}

func TestClassify_NamedCaptureFailures(t *testing.T) {
	if got := Classify(fmt.Errorf("open mic: %w", ErrDeviceNotAllowed)); got.Code != MicrophoneAccessDenied {
		t.Errorf("Expected %s, got %s", MicrophoneAccessDenied, got.Code)
	}
	if got := Classify(ErrDeviceNotFound); got.Code != RecordingFailed {
		t.Errorf("Expected %s, got %s", RecordingFailed, got.Code)
	}
}

func TestClassify_NetworkHeuristics(t *testing.T) {
	errs := []error{
		&url.Error{Op: "Post", URL: "http://localhost/api/voice", Err: errors.New("dial tcp: connection refused")},
		&net.OpError{Op: "read", Err: errors.New("reset")},
		io.ErrUnexpectedEOF,
		errors.New("write: broken pipe"),
	}

	for _, err := range errs {
		if got := Classify(err); got.Code != NetworkError {
			t.Errorf("Expected %s for %v, got %s", NetworkError, err, got.Code)
		}
	}
}

func TestClassify_Fallbacks(t *testing.T) {
	err := errors.New("something odd")

	if got := Classify(err); got.Code != ProviderError {
		t.Errorf("Expected %s, got %s", ProviderError, got.Code)
	}
	if got := ClassifyStage(StageGenerate, err); got.Code != AIGenerationFailed {
		t.Errorf("Expected %s, got %s", AIGenerationFailed, got.Code)
	}
	if got := ClassifyStage(StageSynthesize, err); got.Code != TTSFailed {
		t.Errorf("Expected %s, got %s", TTSFailed, got.Code)
	}
	if got := ClassifyStage(StageTranscribe, err); got.Code != TranscriptionFailed {
		t.Errorf("Expected %s, got %s", TranscriptionFailed, got.Code)
	}

	// A numeric status still wins over the stage fallback.
	st := status.Error(codes.InvalidArgument, "bad encoding")
	if got := ClassifyStage(StageTranscribe, st); got.Code != InvalidAudioFormat {
		t.Errorf("Expected %s, got %s", InvalidAudioFormat, got.Code)
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestFromWire(t *testing.T) {
	got := FromWire("Failed to generate speech audio. Please try again.", "TTS_FAILED", false)
	if got.Code != TTSFailed {
		t.Errorf("Expected %s, got %s", TTSFailed, got.Code)
	}

	got = FromWire(NoSpeechMessage, "", true)
	if got.Code != TranscriptionFailed {
		t.Errorf("Expected %s, got %s", TranscriptionFailed, got.Code)
	}

	got = FromWire("weird", "NOT_A_CODE", false)
	if got.Code != ProviderError {
		t.Errorf("Expected %s, got %s", ProviderError, got.Code)
	}
}

func TestDispatcher_BroadcastAndRemove(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var first, second []Code
	removeFirst := d.AddListener(func(e *Error) { first = append(first, e.Code) })
	d.AddListener(func(e *Error) { second = append(second, e.Code) })

	d.Handle(ErrDeviceNotAllowed)
	removeFirst()
	removeFirst()
	d.Handle(ClassifyStage(StageSynthesize, errors.New("no audio")))

	if len(first) != 1 || first[0] != MicrophoneAccessDenied {
		t.Errorf("Expected first listener to see one MicrophoneAccessDenied, got %v", first)
	}
	if len(second) != 2 || second[1] != TTSFailed {
		t.Errorf("Expected second listener to see two errors ending in TTSFailed, got %v", second)
	}

	if got := d.Handle(nil); got != nil {
		t.Errorf("Expected nil for nil error, got %v", got)
	}
}
