package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
)

// recognizer is the subset of the Speech client used for one-shot recognition.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client recognizer
	logger *zap.Logger
}

// Ensure GoogleSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText dials the Speech-to-Text API. The client is safe for
// concurrent use and is shared by every request.
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

func newGoogleSpeechToTextWithClient(client recognizer, logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{client: client, logger: logger}
}

// TranscribeAudio converts audio data to text using Google Cloud Speech-to-Text
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return "", err
	}

	language := config.Language
	if language == "" {
		language = DefaultLanguage
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		EnableWordConfidence:       true,
	}
	if config.Channels > 1 {
		recognitionConfig.AudioChannelCount = int32(config.Channels)
	}

	g.logger.Info("Transcribing audio",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", config.Encoding),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", language))

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	transcript := joinTranscripts(resp.GetResults())
	g.logger.Info("Transcription completed",
		zap.Int("results", len(resp.GetResults())),
		zap.Int("transcriptLength", len(transcript)))

	return transcript, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// joinTranscripts takes the best alternative of every result and joins them
// with single spaces.
func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case EncodingLinear16:
		return speechpb.RecognitionConfig_LINEAR16, nil
	case EncodingFLAC:
		return speechpb.RecognitionConfig_FLAC, nil
	case EncodingMulaw:
		return speechpb.RecognitionConfig_MULAW, nil
	case EncodingOggOpus:
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case EncodingWebmOpus:
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("%w: %s", ErrUnsupportedFormat, encoding)
	}
}
