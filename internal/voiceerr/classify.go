package voiceerr

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Stage names one step of the voice pipeline.
type Stage string

const (
	StageCapture    Stage = "capture"
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
)

func (s Stage) fallback() Code {
	switch s {
	case StageCapture:
		return RecordingFailed
	case StageTranscribe:
		return TranscriptionFailed
	case StageGenerate:
		return AIGenerationFailed
	case StageSynthesize:
		return TTSFailed
	default:
		return ProviderError
	}
}

// Classify maps err into the taxonomy. Precedence: an *Error passes through
// unchanged, then numeric provider status, then named capture failures, then
// network heuristics, then ProviderError.
func Classify(err error) *Error {
	return classify(err, ProviderError)
}

// ClassifyStage is Classify with the stage's own code as the final fallback.
func ClassifyStage(stage Stage, err error) *Error {
	return classify(err, stage.fallback())
}

func classify(err error, fallback Code) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	if code, ok := statusCode(err); ok {
		switch code {
		case codes.PermissionDenied:
			return New(MicrophoneAccessDenied, err)
		case codes.InvalidArgument:
			return New(InvalidAudioFormat, err)
		case codes.Unavailable:
			return New(NetworkError, err)
		default:
			return New(fallback, err)
		}
	}

	switch {
	case errors.Is(err, ErrDeviceNotAllowed):
		return New(MicrophoneAccessDenied, err)
	case errors.Is(err, ErrDeviceNotFound):
		return New(RecordingFailed, err)
	}

	if isNetwork(err) {
		return New(NetworkError, err)
	}

	return New(fallback, err)
}

// statusCode extracts a gRPC status code from err or anything it wraps.
func statusCode(err error) (codes.Code, bool) {
	st, ok := status.FromError(err)
	if !ok || st == nil || st.Code() == codes.OK {
		return codes.OK, false
	}
	return st.Code(), true
}

var networkHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"broken pipe",
}

func isNetwork(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range networkHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// NoSpeechMessage is the wire message used when transcription yields blank text.
const NoSpeechMessage = "No speech detected in audio"

// FromWire rebuilds a classified error from a wire error line. Unknown or
// missing codes fall back to ProviderError, except the no-speech line which
// is reported as TranscriptionFailed.
func FromWire(message string, code string, noSpeech bool) *Error {
	details := errors.New(message)
	c := Code(code)
	switch {
	case c.Known():
		return New(c, details)
	case noSpeech:
		return New(TranscriptionFailed, details)
	default:
		return New(ProviderError, details)
	}
}
