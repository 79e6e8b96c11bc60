package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/internal/websocket"
)

const realtimePath = "/api/realtime"

// TranscriptRecorder receives final transcripts from the realtime channel.
type TranscriptRecorder interface {
	RecordTranscript(role entities.MessageRole, text string) bool
}

// RealtimeFeed subscribes to the server's transcript channel for one client
// id and records every final transcript through the shared dedup log.
type RealtimeFeed struct {
	url    string
	dialer *gorilla.Dialer
	sink   TranscriptRecorder
	logger *zap.Logger
}

// NewRealtimeFeed builds the feed for serverURL, an http or https base URL.
func NewRealtimeFeed(serverURL, clientID string, sink TranscriptRecorder, logger *zap.Logger) (*RealtimeFeed, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path += realtimePath
	u.RawQuery = url.Values{"client_id": {clientID}}.Encode()

	return &RealtimeFeed{
		url:    u.String(),
		dialer: gorilla.DefaultDialer,
		sink:   sink,
		logger: logger,
	}, nil
}

// URL returns the websocket endpoint the feed dials.
func (f *RealtimeFeed) URL() string {
	return f.url
}

// Run reads transcripts until ctx is done or the connection drops. It
// returns nil when stopped through ctx.
func (f *RealtimeFeed) Run(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to realtime feed: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	f.logger.Info("Realtime feed connected", zap.String("url", f.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("realtime feed closed: %w", err)
		}
		f.handle(data)
	}
}

func (f *RealtimeFeed) handle(data []byte) {
	msg, err := websocket.ParseMessage(data)
	if err != nil {
		f.logger.Warn("Skipping realtime message", zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case *websocket.TranscriptMessage:
		if m.TranscriptType != websocket.TranscriptFinal {
			return
		}
		f.sink.RecordTranscript(m.Role, m.Transcript)
	case *websocket.ErrorMessage:
		f.logger.Warn("Realtime channel reported an error", zap.String("code", m.Code), zap.String("message", m.Message))
	}
}
