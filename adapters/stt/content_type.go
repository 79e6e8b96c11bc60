package stt

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

// Encodings understood by the recognizers.
const (
	EncodingLinear16 = "LINEAR16"
	EncodingFLAC     = "FLAC"
	EncodingMulaw    = "MULAW"
	EncodingOggOpus  = "OGG_OPUS"
	EncodingWebmOpus = "WEBM_OPUS"
)

const (
	DefaultLanguage = "en-US"

	opusSampleRate = 48000
	pcmSampleRate  = 16000
	mulawRate      = 8000
)

// ErrUnsupportedFormat is returned for content types no recognizer accepts.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ParseContentType derives the recognition config from an utterance mime type.
// An empty type is treated as browser-recorded Opus in WebM.
func ParseContentType(contentType, language string) (repositories.AudioConfig, error) {
	config := repositories.AudioConfig{Language: language, Channels: 1}

	if strings.TrimSpace(contentType) == "" {
		config.Encoding = EncodingWebmOpus
		config.SampleRate = opusSampleRate
		return config, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return config, fmt.Errorf("%w: %q: %v", ErrUnsupportedFormat, contentType, err)
	}

	switch mediaType {
	case "audio/webm", "video/webm", "application/octet-stream":
		config.Encoding = EncodingWebmOpus
		config.SampleRate = opusSampleRate
	case "audio/ogg", "audio/opus":
		config.Encoding = EncodingOggOpus
		config.SampleRate = opusSampleRate
	case "audio/l16", "audio/pcm":
		config.Encoding = EncodingLinear16
		config.SampleRate = intParam(params, "rate", pcmSampleRate)
		config.Channels = intParam(params, "channels", 1)
	case "audio/wav", "audio/wave", "audio/x-wav":
		// The WAV header carries the sample rate.
		config.Encoding = EncodingLinear16
	case "audio/flac", "audio/x-flac":
		config.Encoding = EncodingFLAC
	case "audio/basic", "audio/pcmu":
		config.Encoding = EncodingMulaw
		config.SampleRate = mulawRate
	default:
		return config, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}

	return config, nil
}

func intParam(params map[string]string, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
