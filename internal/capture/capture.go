// Package capture records one utterance from a microphone device.
package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

// DefaultTimeslice is how often buffered device data is cut into a chunk.
const DefaultTimeslice = 100 * time.Millisecond

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("not recording")

// Device is a microphone. Open starts delivering audio to onData until Close.
// onData may be called from a device thread.
type Device interface {
	Open(onData func(audio []byte)) error
	Close() error
	MimeType() string
}

// Capture owns one recording session at a time.
type Capture struct {
	device    Device
	timeslice time.Duration
	logger    *zap.Logger

	// opMu serializes Start, Stop and Abort.
	opMu sync.Mutex

	mu        sync.Mutex
	recording bool
	pending   bytes.Buffer
	chunks    [][]byte
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Capture.
type Option func(*Capture)

// WithTimeslice overrides DefaultTimeslice.
func WithTimeslice(d time.Duration) Option {
	return func(c *Capture) {
		if d > 0 {
			c.timeslice = d
		}
	}
}

// New creates a capture bound to device.
func New(device Device, logger *zap.Logger, opts ...Option) *Capture {
	c := &Capture{
		device:    device,
		timeslice: DefaultTimeslice,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recording reports whether a session is active.
func (c *Capture) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Start acquires the device and begins buffering. Starting while already
// recording is a no-op. Failures are returned as *voiceerr.Error with
// MicrophoneAccessDenied or RecordingFailed.
func (c *Capture) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return nil
	}
	c.pending.Reset()
	c.chunks = nil
	c.recording = true
	c.mu.Unlock()

	if err := c.device.Open(c.onData); err != nil {
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
		verr := voiceerr.ClassifyStage(voiceerr.StageCapture, err)
		c.logger.Error("Failed to open capture device", zap.String("code", string(verr.Code)), zap.Error(err))
		return verr
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.mu.Lock()
	c.stop, c.done = stop, done
	c.mu.Unlock()

	go c.run(ctx, stop, done)

	c.logger.Info("Recording started", zap.Duration("timeslice", c.timeslice))
	return nil
}

func (c *Capture) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.cutChunk()
			c.mu.Unlock()
		case <-stop:
			return
		case <-ctx.Done():
			c.logger.Warn("Recording cancelled", zap.Error(ctx.Err()))
			if _, err := c.finish(false); err != nil {
				c.logger.Warn("Failed to release capture device", zap.Error(err))
			}
			return
		}
	}
}

func (c *Capture) onData(audio []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return
	}
	c.pending.Write(audio)
}

// cutChunk moves the pending bytes into a new chunk. Callers hold mu.
func (c *Capture) cutChunk() {
	if c.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, c.pending.Len())
	copy(chunk, c.pending.Bytes())
	c.chunks = append(c.chunks, chunk)
	c.pending.Reset()
}

// Stop flushes the pending chunk, releases the device and returns the
// recorded utterance. A device close failure is logged; the audio already
// captured is still returned.
func (c *Capture) Stop() (domain.Utterance, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	chunks, err := c.finish(true)
	if errors.Is(err, ErrNotRecording) {
		return domain.Utterance{}, err
	}
	if err != nil {
		c.logger.Warn("Failed to release capture device", zap.Error(err))
	}

	audio := bytes.Join(chunks, nil)
	c.logger.Info("Recording stopped", zap.Int("chunks", len(chunks)), zap.Int("audioSize", len(audio)))
	return domain.Utterance{Audio: audio, MimeType: c.device.MimeType()}, nil
}

// Abort releases the device and discards everything recorded so far.
func (c *Capture) Abort(reason error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	_, err := c.finish(true)
	if errors.Is(err, ErrNotRecording) {
		return nil
	}
	c.logger.Warn("Recording aborted", zap.NamedError("reason", reason))
	return err
}

// finish ends the session and always closes the device. wait is false when
// called from the ticker goroutine itself.
func (c *Capture) finish(wait bool) ([][]byte, error) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.recording = false
	c.cutChunk()
	chunks := c.chunks
	c.chunks = nil
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		if wait {
			<-done
		}
	}

	if err := c.device.Close(); err != nil {
		return chunks, voiceerr.ClassifyStage(voiceerr.StageCapture, err)
	}
	return chunks, nil
}
