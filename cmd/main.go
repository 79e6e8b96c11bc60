package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/api"
	"github.com/sameerkhansf/vapi-takehome/internal/config"
	"github.com/sameerkhansf/vapi-takehome/internal/logging"
	"github.com/sameerkhansf/vapi-takehome/internal/providers"
	"github.com/sameerkhansf/vapi-takehome/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	set, err := providers.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize providers", zap.Error(err))
	}
	defer set.Close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, api.HeaderClientID},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))

	// Transcripts fan out to realtime subscribers
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	api.InitRoutes(e, api.Dependencies{
		SpeechToText:  set.SpeechToText,
		LLM:           set.LLM,
		TextToSpeech:  set.TextToSpeech,
		Voice:         repositories.VoiceConfig{Voice: cfg.TTSVoice, Language: cfg.STTLanguage},
		Language:      cfg.STTLanguage,
		MaxAudioBytes: cfg.MaxAudioBytes,
	}, hub, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice server started",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv))

	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
