// Package client drives one voice conversation from the user's side: it
// records an utterance, submits it, follows the streamed reply and hands the
// audio to a player.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain"
	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/internal/capture"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
	"github.com/sameerkhansf/vapi-takehome/internal/wire"
)

const (
	voicePath      = "/api/voice"
	headerClientID = "X-Client-ID"
	readChunkSize  = 4096
	maxErrorBody   = 64 << 10
)

var (
	// ErrBusy is returned by StartRecording while the previous utterance is
	// still being processed.
	ErrBusy = errors.New("previous utterance is still being processed")
	// ErrNotRecording is returned by StopRecording when no recording is active.
	ErrNotRecording = errors.New("not recording")
	// ErrDismissFirst is returned by StartRecording while an error is shown.
	ErrDismissFirst = errors.New("dismiss the current error first")

	errEmptyRecording = errors.New("recording captured no audio")
	errStreamEnded    = errors.New("response stream ended before a final event")
)

// Recorder is the capture session the controller drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (domain.Utterance, error)
	Abort(reason error) error
}

// AudioPlayer takes over playback of a reply. Play returns once playback has
// been handed off.
type AudioPlayer interface {
	Play(ctx context.Context, dataURL string) error
}

// HTTPDoer sends the utterance request.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Callbacks are invoked from the goroutine that observed the change. They
// must not block for long.
type Callbacks struct {
	OnState      func(State)
	OnTranscript func(text string)
	OnResponse   func(text string)
	OnAudio      func(dataURL string)
	OnError      func(*voiceerr.Error)
	OnMessage    func(entities.ConversationMessage)
}

// Config configures a Controller.
type Config struct {
	ServerURL   string
	ClientID    string
	DedupWindow time.Duration
}

// Controller is the client pipeline: one utterance in flight at a time.
type Controller struct {
	cfg          Config
	recorder     Recorder
	player       AudioPlayer
	httpClient   HTTPDoer
	dispatcher   *voiceerr.Dispatcher
	conversation *entities.Conversation
	callbacks    Callbacks
	logger       *zap.Logger
	now          func() time.Time

	removeListener func()

	mu       sync.Mutex
	state    State
	pending  bool
	stopping bool
	lastErr  *voiceerr.Error

	wg sync.WaitGroup
}

// Option configures optional Controller collaborators.
type Option func(*Controller)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Controller) { c.httpClient = doer }
}

// WithClock replaces time.Now for dedup timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController wires the pipeline. callbacks.OnError is registered on the
// dispatcher and removed again by Close.
func NewController(
	cfg Config,
	recorder Recorder,
	player AudioPlayer,
	dispatcher *voiceerr.Dispatcher,
	callbacks Callbacks,
	logger *zap.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		cfg:          cfg,
		recorder:     recorder,
		player:       player,
		httpClient:   http.DefaultClient,
		dispatcher:   dispatcher,
		conversation: entities.NewConversation(cfg.DedupWindow),
		callbacks:    callbacks,
		logger:       logger.With(zap.String("clientID", cfg.ClientID)),
		now:          time.Now,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if callbacks.OnError != nil {
		c.removeListener = dispatcher.AddListener(callbacks.OnError)
	}
	return c
}

// State returns the current processing state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error currently shown, if any.
func (c *Controller) LastError() *voiceerr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns the deduplicated conversation log.
func (c *Controller) Messages() []entities.ConversationMessage {
	return c.conversation.Messages()
}

// StartRecording begins a new utterance. It is refused with ErrBusy while
// the previous round trip is pending; starting while recording is a no-op.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.pending:
		c.mu.Unlock()
		return ErrBusy
	case c.state == StateRecording:
		c.mu.Unlock()
		return nil
	case c.state == StateError:
		c.mu.Unlock()
		return ErrDismissFirst
	}
	next, ok := c.transitionLocked(TriggerStart)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: state %s", ErrBusy, next)
	}
	c.emitState(next)

	if err := c.recorder.Start(ctx); err != nil {
		return c.fail(voiceerr.ClassifyStage(voiceerr.StageCapture, err))
	}
	return nil
}

// StopRecording releases the microphone before returning, then submits the
// utterance in the background. Only one of several concurrent calls claims
// the recording; the others get ErrNotRecording.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording || c.stopping {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.stopping = true
	c.mu.Unlock()

	utterance, err := c.recorder.Stop()
	if err == nil && utterance.Empty() {
		err = voiceerr.New(voiceerr.RecordingFailed, errEmptyRecording)
	}

	if errors.Is(err, capture.ErrNotRecording) {
		// The capture session already ended, e.g. its context was cancelled.
		c.mu.Lock()
		c.stopping = false
		next, _ := c.transitionLocked(TriggerReset)
		c.mu.Unlock()
		c.emitState(next)
		return ErrNotRecording
	}
	if err != nil {
		c.mu.Lock()
		c.stopping = false
		verr := c.failLocked(voiceerr.ClassifyStage(voiceerr.StageCapture, err))
		c.mu.Unlock()
		c.report(verr)
		return verr
	}

	c.mu.Lock()
	c.stopping = false
	next, _ := c.transitionLocked(TriggerStop)
	c.pending = true
	c.wg.Add(1)
	c.mu.Unlock()
	c.emitState(next)

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.pending = false
			c.mu.Unlock()
		}()
		c.submit(ctx, utterance)
	}()
	return nil
}

// Dismiss clears the current error and returns to idle. It reports whether
// there was an error to dismiss.
func (c *Controller) Dismiss() bool {
	c.mu.Lock()
	next, ok := c.transitionLocked(TriggerDismiss)
	if ok {
		c.lastErr = nil
	}
	c.mu.Unlock()
	if ok {
		c.emitState(next)
	}
	return ok
}

// ClearConversation empties the conversation log and returns how many
// messages were removed.
func (c *Controller) ClearConversation() int {
	n := c.conversation.Clear()
	c.logger.Debug("Conversation cleared", zap.Int("messages", n))
	return n
}

// RecordTranscript adds a final transcript from another channel to the log,
// subject to the same deduplication as the voice stream.
func (c *Controller) RecordTranscript(role entities.MessageRole, text string) bool {
	return c.record(role, text)
}

// Wait blocks until the in-flight submission, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close releases the microphone if still held, waits for the in-flight
// submission and unregisters the error callback.
func (c *Controller) Close() {
	if err := c.recorder.Abort(errors.New("controller closed")); err != nil {
		c.logger.Warn("Failed to release recorder", zap.Error(err))
	}
	c.mu.Lock()
	var next State
	var reset bool
	if c.state == StateRecording && !c.stopping {
		next, reset = c.transitionLocked(TriggerReset)
	}
	c.mu.Unlock()
	if reset {
		c.emitState(next)
	}
	c.wg.Wait()
	if c.removeListener != nil {
		c.removeListener()
	}
}

func (c *Controller) submit(ctx context.Context, utterance domain.Utterance) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.ServerURL, "/")+voicePath, bytes.NewReader(utterance.Audio))
	if err != nil {
		c.fail(voiceerr.New(voiceerr.ProviderError, err))
		return
	}
	req.Header.Set("Content-Type", utterance.MimeType)
	if c.cfg.ClientID != "" {
		req.Header.Set(headerClientID, c.cfg.ClientID)
	}

	c.logger.Info("Submitting utterance",
		zap.Int("audioSize", len(utterance.Audio)),
		zap.String("mimeType", utterance.MimeType))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(voiceerr.New(voiceerr.NetworkError, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.fail(responseError(resp))
		return
	}

	c.consume(ctx, resp.Body)
}

// responseError turns a non-streamed error response into one classified error.
func responseError(resp *http.Response) *voiceerr.Error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return voiceerr.New(voiceerr.ProviderError, fmt.Errorf("server returned %s", resp.Status))
	}
	return voiceerr.FromWire(body.Error, body.Code, false)
}

// consume reads the stream chunk by chunk and acts on each event as soon as
// its line is complete. Everything after a terminal event is ignored.
func (c *Controller) consume(ctx context.Context, body io.Reader) {
	var parser wire.LineParser
	buf := make([]byte, readChunkSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range parser.Feed(buf[:n]) {
				if c.handleLine(ctx, line) {
					return
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if line := parser.Flush(); line != nil && c.handleLine(ctx, line) {
				return
			}
			c.fail(voiceerr.New(voiceerr.NetworkError, errStreamEnded))
			return
		}
		if err != nil {
			c.fail(voiceerr.New(voiceerr.NetworkError, fmt.Errorf("failed to read response stream: %w", err)))
			return
		}
	}
}

// handleLine decodes one line and reports whether a terminal event was handled.
func (c *Controller) handleLine(ctx context.Context, line []byte) bool {
	events, err := wire.Decode(line)
	if err != nil {
		c.logger.Warn("Skipping unparsable stream line", zap.ByteString("line", line), zap.Error(err))
		return false
	}
	for _, event := range events {
		if c.handleEvent(ctx, event) {
			return true
		}
	}
	return false
}

func (c *Controller) handleEvent(ctx context.Context, event domain.PipelineEvent) bool {
	switch ev := event.(type) {
	case domain.TranscriptEvent:
		c.advance(TriggerTranscript)
		if c.callbacks.OnTranscript != nil {
			c.callbacks.OnTranscript(ev.Text)
		}
		c.record(entities.MessageRoleUser, ev.Text)
		return false

	case domain.ResponseEvent:
		c.advance(TriggerResponse)
		if c.callbacks.OnResponse != nil {
			c.callbacks.OnResponse(ev.Text)
		}
		c.record(entities.MessageRoleAssistant, ev.Text)
		return false

	case domain.AudioReplyEvent:
		c.advance(TriggerAudio)
		if c.callbacks.OnAudio != nil {
			c.callbacks.OnAudio(ev.DataURL)
		}
		if err := c.player.Play(ctx, ev.DataURL); err != nil {
			c.logger.Warn("Audio playback failed", zap.Error(err))
		}
		c.mu.Lock()
		next, ok := c.transitionLocked(TriggerPlaybackHandedOff)
		c.pending = false
		c.mu.Unlock()
		if ok {
			c.emitState(next)
		}
		return true

	case domain.ErrorEvent:
		c.fail(voiceerr.FromWire(ev.Message, ev.Code, ev.NoSpeech))
		return true

	default:
		c.logger.Warn("Ignoring unexpected event", zap.String("kind", string(event.Kind())))
		return false
	}
}

// fail moves to the error state, dispatches err and returns the classified error.
func (c *Controller) fail(err error) *voiceerr.Error {
	c.mu.Lock()
	verr := c.failLocked(err)
	c.mu.Unlock()

	c.report(verr)
	return verr
}

// failLocked records err as the current error. Callers hold mu and call
// report after releasing it.
func (c *Controller) failLocked(err error) *voiceerr.Error {
	verr := voiceerr.Classify(err)
	c.transitionLocked(TriggerFail)
	c.lastErr = verr
	c.pending = false
	return verr
}

func (c *Controller) report(verr *voiceerr.Error) {
	c.dispatcher.Handle(verr)
	c.emitState(StateError)
}

func (c *Controller) advance(t Trigger) {
	c.mu.Lock()
	prev := c.state
	next, ok := c.transitionLocked(t)
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("Unexpected transition", zap.Stringer("state", prev), zap.Stringer("trigger", t))
		return
	}
	c.emitState(next)
}

// transitionLocked applies t. Callers hold mu.
func (c *Controller) transitionLocked(t Trigger) (State, bool) {
	next, ok := Transition(c.state, t)
	if ok {
		c.state = next
	}
	return next, ok
}

func (c *Controller) emitState(s State) {
	if c.callbacks.OnState != nil {
		c.callbacks.OnState(s)
	}
}

func (c *Controller) record(role entities.MessageRole, text string) bool {
	msg, added := c.conversation.Append(role, strings.TrimSpace(text), c.now())
	if !added {
		c.logger.Debug("Dropped duplicate transcript", zap.String("role", string(role)))
		return false
	}
	if c.callbacks.OnMessage != nil {
		c.callbacks.OnMessage(msg)
	}
	return true
}
