package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/adapters/stt"
	"github.com/sameerkhansf/vapi-takehome/adapters/tts"
	"github.com/sameerkhansf/vapi-takehome/domain"
	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
	"github.com/sameerkhansf/vapi-takehome/internal/websocket"
	"github.com/sameerkhansf/vapi-takehome/internal/wire"
	"github.com/sameerkhansf/vapi-takehome/usecase"
)

const (
	serviceName = "voice-ai-server"

	// HeaderClientID identifies the caller so its realtime sockets get the transcripts.
	HeaderClientID = "X-Client-ID"

	// DefaultMaxAudioBytes bounds the uploaded utterance when no limit is configured.
	DefaultMaxAudioBytes = 10 << 20
)

// Dependencies are the shared, stateless provider adapters used by every request.
type Dependencies struct {
	SpeechToText  repositories.SpeechToText
	LLM           repositories.LargeLanguageModel
	TextToSpeech  repositories.TextToSpeech
	Voice         repositories.VoiceConfig
	Language      string
	MaxAudioBytes int64
}

// InitRoutes initializes all API routes. hub may be nil, in which case no
// realtime endpoint is registered.
func InitRoutes(e *echo.Echo, deps Dependencies, hub *websocket.Hub, logger *zap.Logger) {
	if deps.MaxAudioBytes <= 0 {
		deps.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if deps.Language == "" {
		deps.Language = stt.DefaultLanguage
	}

	var publisher usecase.TranscriptPublisher
	if hub != nil {
		publisher = hub
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: serviceName,
		})
	})

	v := e.Group("/api")

	v.POST("/voice", func(c echo.Context) error {
		return processVoice(c, deps, publisher, logger)
	})

	v.GET("/voices", func(c echo.Context) error {
		return listVoices(c, deps.TextToSpeech, logger)
	})

	if hub != nil {
		v.GET("/realtime", func(c echo.Context) error {
			return websocket.HandleWebSocket(hub, c, logger)
		})
	}
}

// processVoice validates the uploaded utterance, then streams the pipeline
// events back as newline-delimited JSON.
func processVoice(c echo.Context, deps Dependencies, publisher usecase.TranscriptPublisher, logger *zap.Logger) error {
	req := c.Request()
	logger = logger.With(zap.String("requestID", c.Response().Header().Get(echo.HeaderXRequestID)))

	audio, err := io.ReadAll(io.LimitReader(req.Body, deps.MaxAudioBytes+1))
	if err != nil {
		logger.Error("Failed to read audio body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read audio data"})
	}
	if int64(len(audio)) > deps.MaxAudioBytes {
		logger.Warn("Audio payload too large", zap.Int64("limit", deps.MaxAudioBytes))
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Audio payload too large"})
	}
	if len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No audio data received"})
	}

	mimeType := req.Header.Get(echo.HeaderContentType)
	audioConfig, err := stt.ParseContentType(mimeType, deps.Language)
	if err != nil {
		verr := voiceerr.New(voiceerr.InvalidAudioFormat, err)
		logger.Warn("Rejected audio format", zap.String("contentType", mimeType), zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message, Code: string(verr.Code)})
	}

	clientID := req.Header.Get(HeaderClientID)
	if clientID == "" {
		clientID = c.QueryParam("client_id")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, wire.ContentType)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	service := usecase.NewConversationService(
		deps.SpeechToText,
		deps.LLM,
		deps.TextToSpeech,
		publisher,
		deps.Voice,
		logger,
	)

	writer := wire.NewWriter(res)
	err = service.ProcessUtterance(req.Context(), usecase.UtteranceRequest{
		ClientID:    clientID,
		Utterance:   domain.Utterance{Audio: audio, MimeType: mimeType},
		AudioConfig: audioConfig,
	}, writer)
	if !writer.Terminated() {
		logger.Warn("Stream closed without a terminal event", zap.Error(err))
		return nil
	}
	if err != nil {
		// The outcome was already written to the stream.
		logger.Debug("Utterance ended with error", zap.Error(err))
	}
	return nil
}

func listVoices(c echo.Context, textToSpeech repositories.TextToSpeech, logger *zap.Logger) error {
	lister, ok := textToSpeech.(repositories.VoiceLister)
	if !ok {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: tts.ErrListingUnsupported.Error()})
	}

	language := c.QueryParam("language")
	voices, err := lister.ListVoices(c.Request().Context(), language)
	if errors.Is(err, tts.ErrListingUnsupported) {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		verr := voiceerr.ClassifyStage(voiceerr.StageSynthesize, err)
		logger.Error("Failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: verr.Message, Code: string(verr.Code)})
	}

	if voices == nil {
		voices = []repositories.Voice{}
	}
	return c.JSON(http.StatusOK, VoicesResponse{Language: language, Voices: voices})
}
