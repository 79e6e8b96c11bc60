package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
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

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "voice-client:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "voice server base URL")
	flag.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "client id used to receive realtime transcripts")
	flag.DurationVar(&cfg.DedupWindow, "dedup-window", cfg.DedupWindow, "window for collapsing duplicate transcripts")
	logFile := flag.String("log-file", filepath.Join(os.TempDir(), "voice-client.log"), "log output path")
	realtime := flag.Bool("realtime", true, "subscribe to the realtime transcript channel")
	flag.Parse()

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	logger, err := logging.ToFile(*logFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var program atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if p := program.Load(); p != nil {
			p.Send(msg)
		}
	}

	dispatcher := voiceerr.NewDispatcher(logger)
	recorder := capture.New(audio.NewMalgoDevice(logger), logger)
	player := audio.NewPlayer(cfg.PlaybackDir, logger)

	controller := client.NewController(
		client.Config{
			ServerURL:   cfg.ServerURL,
			ClientID:    cfg.ClientID,
			DedupWindow: cfg.DedupWindow,
		},
		recorder,
		player,
		dispatcher,
		client.Callbacks{
			OnState:   func(s client.State) { send(stateMsg(s)) },
			OnError:   func(e *voiceerr.Error) { send(errorMsg(e)) },
			OnMessage: func(m entities.ConversationMessage) { send(messageMsg(m)) },
		},
		logger,
	)
	defer controller.Close()

	if *realtime {
		feed, err := client.NewRealtimeFeed(cfg.ServerURL, cfg.ClientID, controller, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Warn("Realtime feed stopped", zap.Error(err))
				send(noticeMsg("Realtime transcripts unavailable"))
			}
		}()
	}

	logger.Info("Voice client started",
		zap.String("server", cfg.ServerURL),
		zap.String("clientID", cfg.ClientID))

	p := tea.NewProgram(newModel(ctx, controller, cfg.ClientID), tea.WithContext(ctx))
	program.Store(p)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
