package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/adapters/audio"
	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/internal/capture"
	"github.com/sameerkhansf/vapi-takehome/internal/client"
	"github.com/sameerkhansf/vapi-takehome/internal/config"
	"github.com/sameerkhansf/vapi-takehome/internal/logging"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

// nopPlayer prints instead of playing when playback is disabled.
type nopPlayer struct{}

func (nopPlayer) Play(ctx context.Context, dataURL string) error {
	fmt.Printf("🔈 audio reply received (%d bytes as data URL)\n", len(dataURL))
	return nil
}

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "voice-send:", err)
		os.Exit(1)
	}

	file := flag.String("file", "sample_audio.wav", "audio file to send as one utterance")
	mimeType := flag.String("type", "", "content type of the file (derived from the extension when empty)")
	pace := flag.Duration("pace", 0, "delay between replayed chunks, e.g. 100ms to mimic a live microphone")
	play := flag.Bool("play", false, "play the reply through a system player")
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "voice server base URL")
	flag.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "client id sent with the utterance")
	flag.Parse()

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	logger, err := logging.New(false, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "voice-send:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *file, *mimeType, *pace, *play, logger); err != nil {
		logger.Error("Utterance failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.ClientConfig, file, mimeType string, pace time.Duration, play bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	device := audio.NewFileDevice(file, mimeType, pace)
	recorder := capture.New(device, logger)

	var player client.AudioPlayer = nopPlayer{}
	var systemPlayer *audio.Player
	if play {
		systemPlayer = audio.NewPlayer(cfg.PlaybackDir, logger)
		player = systemPlayer
	}

	controller := client.NewController(
		client.Config{ServerURL: cfg.ServerURL, ClientID: cfg.ClientID, DedupWindow: cfg.DedupWindow},
		recorder,
		player,
		voiceerr.NewDispatcher(logger),
		client.Callbacks{
			OnState: func(s client.State) {
				logger.Info("State changed", zap.Stringer("state", s))
			},
			OnMessage: func(m entities.ConversationMessage) {
				fmt.Printf("%s: %s\n", m.Role, m.Text)
			},
		},
		logger,
	)
	defer controller.Close()

	logger.Info("Sending utterance",
		zap.String("file", file),
		zap.String("mimeType", device.MimeType()),
		zap.String("server", cfg.ServerURL))

	if err := controller.StartRecording(ctx); err != nil {
		return err
	}

	select {
	case <-device.Drained():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := controller.StopRecording(ctx); err != nil {
		return err
	}
	controller.Wait()
	if systemPlayer != nil {
		systemPlayer.Wait()
	}

	if verr := controller.LastError(); verr != nil {
		return verr
	}
	if controller.State() != client.StateIdle {
		return errors.New("utterance did not complete")
	}
	return nil
}
