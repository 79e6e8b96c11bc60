package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain"
	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
	"github.com/sameerkhansf/vapi-takehome/internal/wire"
)

var (
	// ErrEmptyUtterance is returned before any stage runs when there is no audio.
	ErrEmptyUtterance = errors.New("no audio data received")
	// ErrNoSpeech is returned after the no-speech event was sent.
	ErrNoSpeech = errors.New(voiceerr.NoSpeechMessage)
)

// EventSink receives the wire events of one utterance in order.
type EventSink interface {
	Send(event domain.PipelineEvent) error
}

// TranscriptPublisher is told about final user and assistant text so other
// channels of the same client can show it.
type TranscriptPublisher interface {
	PublishTranscript(clientID string, role entities.MessageRole, text string)
}

// UtteranceRequest is one inbound utterance together with its decoded format.
type UtteranceRequest struct {
	ClientID    string
	Utterance   domain.Utterance
	AudioConfig repositories.AudioConfig
}

// ConversationService orchestrates the conversation flow for one utterance:
// transcribe, generate, synthesize. A new service is built per request and
// holds no state between calls.
type ConversationService struct {
	speechToText repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech
	publisher    TranscriptPublisher
	voice        repositories.VoiceConfig
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service. publisher may be nil.
func NewConversationService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	publisher TranscriptPublisher,
	voice repositories.VoiceConfig,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		speechToText: stt,
		llm:          llm,
		textToSpeech: tts,
		publisher:    publisher,
		voice:        voice,
		logger:       logger,
	}
}

// ProcessUtterance runs the stages in fixed order and writes every event to
// sink. Exactly one terminal event is sent unless the sink itself fails, in
// which case the remaining stages are skipped and nothing more is written.
func (s *ConversationService) ProcessUtterance(ctx context.Context, req UtteranceRequest, sink EventSink) error {
	if req.Utterance.Empty() {
		return ErrEmptyUtterance
	}

	ctx, span := tracer.Start(ctx, "process utterance", trace.WithAttributes(
		attribute.String("client.id", req.ClientID),
		attribute.Int("audio.bytes", len(req.Utterance.Audio)),
		attribute.String("audio.mime_type", req.Utterance.MimeType),
	))
	defer span.End()

	logger := s.logger.With(zap.String("clientID", req.ClientID))
	logger.Info("Processing utterance",
		zap.Int("audioSize", len(req.Utterance.Audio)),
		zap.String("mimeType", req.Utterance.MimeType),
		zap.String("encoding", req.AudioConfig.Encoding))

	// Step 1: Speech to Text
	var transcript string
	err := s.runStage(ctx, voiceerr.StageTranscribe, func(ctx context.Context) error {
		text, err := s.speechToText.TranscribeAudio(ctx, req.Utterance.Audio, req.AudioConfig)
		transcript = strings.TrimSpace(text)
		return err
	})
	if err != nil {
		return s.fail(logger, sink, voiceerr.StageTranscribe, err)
	}

	if transcript == "" {
		logger.Info("No speech detected in audio")
		if err := sink.Send(domain.ErrorEvent{Message: voiceerr.NoSpeechMessage, NoSpeech: true}); err != nil {
			return s.sinkFailed(logger, err)
		}
		return ErrNoSpeech
	}

	logger.Info("Transcription completed", zap.String("text", transcript))
	if err := sink.Send(domain.TranscriptEvent{Text: transcript}); err != nil {
		return s.sinkFailed(logger, err)
	}
	s.publish(req.ClientID, entities.MessageRoleUser, transcript)

	// Step 2: Generate AI response
	var reply string
	err = s.runStage(ctx, voiceerr.StageGenerate, func(ctx context.Context) error {
		text, err := s.llm.Generate(ctx, transcript)
		reply = strings.TrimSpace(text)
		return err
	})
	if err != nil {
		return s.fail(logger, sink, voiceerr.StageGenerate, err)
	}

	logger.Info("AI response generated", zap.Int("responseLength", len(reply)))

	// Step 3: Text to Speech
	var audioURL string
	err = s.runStage(ctx, voiceerr.StageSynthesize, func(ctx context.Context) error {
		audio, err := s.textToSpeech.SynthesizeAudio(ctx, reply, s.voice)
		if err != nil {
			return err
		}
		audioURL = wire.EncodeDataURL(s.textToSpeech.AudioMimeType(), audio)
		logger.Info("TTS completed", zap.Int("audioSize", len(audio)))
		return nil
	})
	if err != nil {
		return s.fail(logger, sink, voiceerr.StageSynthesize, err)
	}

	if err := sink.Send(domain.ResultEvent{
		Transcript: transcript,
		Response:   reply,
		AudioURL:   audioURL,
	}); err != nil {
		return s.sinkFailed(logger, err)
	}
	s.publish(req.ClientID, entities.MessageRoleAssistant, reply)

	logger.Info("Utterance processed")
	return nil
}

// runStage runs fn inside its own span and turns a panic into an error.
func (s *ConversationService) runStage(ctx context.Context, stage voiceerr.Stage, fn func(context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, string(stage))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s stage panicked: %v", stage, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
	}()

	return fn(ctx)
}

// fail classifies err and sends it as the single terminal error event.
func (s *ConversationService) fail(logger *zap.Logger, sink EventSink, stage voiceerr.Stage, err error) error {
	verr := voiceerr.ClassifyStage(stage, err)
	logger.Error("Pipeline stage failed",
		zap.String("stage", string(stage)),
		zap.String("code", string(verr.Code)),
		zap.Error(err))

	if sendErr := sink.Send(domain.ErrorEvent{Message: verr.Message, Code: string(verr.Code)}); sendErr != nil {
		return s.sinkFailed(logger, sendErr)
	}
	return verr
}

func (s *ConversationService) sinkFailed(logger *zap.Logger, err error) error {
	logger.Warn("Client stream closed, aborting utterance", zap.Error(err))
	return fmt.Errorf("failed to send event: %w", err)
}

func (s *ConversationService) publish(clientID string, role entities.MessageRole, text string) {
	if s.publisher == nil || clientID == "" {
		return
	}
	s.publisher.PublishTranscript(clientID, role, text)
}
