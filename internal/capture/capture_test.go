package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	closeErr error
	onData   func([]byte)
	opens    int
	closes   int
}

func (d *fakeDevice) Open(onData func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return d.openErr
	}
	d.onData = onData
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.onData = nil
	return d.closeErr
}

func (d *fakeDevice) MimeType() string { return "audio/l16; rate=16000; channels=1" }

func (d *fakeDevice) emit(b []byte) {
	d.mu.Lock()
	fn := d.onData
	d.mu.Unlock()
	if fn != nil {
		fn(b)
	}
}

func (d *fakeDevice) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.closes
}

func TestCapture_StartStopReturnsConcatenatedUtterance(t *testing.T) {
	device := &fakeDevice{}
	c := New(device, zaptest.NewLogger(t), WithTimeslice(5*time.Millisecond))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.Recording() {
		t.Fatal("Expected recording after Start")
	}

	device.emit([]byte("ab"))
	time.Sleep(20 * time.Millisecond)
	device.emit([]byte("cd"))
	device.emit([]byte("ef"))

	utterance, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !bytes.Equal(utterance.Audio, []byte("abcdef")) {
		t.Errorf("Expected audio 'abcdef', got %q", utterance.Audio)
	}
	if utterance.MimeType != device.MimeType() {
		t.Errorf("Expected mime %s, got %s", device.MimeType(), utterance.MimeType)
	}
	if c.Recording() {
		t.Error("Expected not recording after Stop")
	}
	if _, closes := device.counts(); closes != 1 {
		t.Errorf("Expected device closed once, got %d", closes)
	}
}

func TestCapture_StartWhileRecordingIsNoop(t *testing.T) {
	device := &fakeDevice{}
	c := New(device, zaptest.NewLogger(t))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	device.emit([]byte("x"))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if opens, _ := device.counts(); opens != 1 {
		t.Errorf("Expected one open, got %d", opens)
	}

	utterance, _ := c.Stop()
	if string(utterance.Audio) != "x" {
		t.Errorf("Expected buffered audio kept, got %q", utterance.Audio)
	}
}

func TestCapture_OpenFailuresAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want voiceerr.Code
	}{
		{"refused", voiceerr.ErrDeviceNotAllowed, voiceerr.MicrophoneAccessDenied},
		{"missing", voiceerr.ErrDeviceNotFound, voiceerr.RecordingFailed},
		{"other", errors.New("backend init failed"), voiceerr.RecordingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeDevice{openErr: tt.err}, zaptest.NewLogger(t))

			err := c.Start(context.Background())
			var verr *voiceerr.Error
			if !errors.As(err, &verr) || verr.Code != tt.want {
				t.Fatalf("Expected %s, got %v", tt.want, err)
			}
			if c.Recording() {
				t.Error("Expected not recording after failed Start")
			}
		})
	}
}

func TestCapture_StopWithoutStart(t *testing.T) {
	c := New(&fakeDevice{}, zaptest.NewLogger(t))

	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
}

func TestCapture_CloseErrorStillReleasesSession(t *testing.T) {
	device := &fakeDevice{closeErr: errors.New("device busy")}
	c := New(device, zaptest.NewLogger(t))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	device.emit([]byte("data"))

	utterance, err := c.Stop()
	if err != nil {
		t.Fatalf("Expected close failure to be logged only, got %v", err)
	}
	if string(utterance.Audio) != "data" {
		t.Errorf("Expected captured audio returned, got %q", utterance.Audio)
	}
	if c.Recording() {
		t.Error("Expected session released after close failure")
	}
}

func TestCapture_AbortDiscardsAndReleases(t *testing.T) {
	device := &fakeDevice{}
	c := New(device, zaptest.NewLogger(t))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	device.emit([]byte("lost"))

	if err := c.Abort(errors.New("user cancelled")); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if c.Recording() {
		t.Error("Expected not recording after Abort")
	}
	if _, closes := device.counts(); closes != 1 {
		t.Errorf("Expected device closed, got %d closes", closes)
	}

	// Data after release is ignored and a new session starts clean.
	device.emit([]byte("late"))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	utterance, _ := c.Stop()
	if len(utterance.Audio) != 0 {
		t.Errorf("Expected empty utterance, got %q", utterance.Audio)
	}
}

func TestCapture_ContextCancelReleasesDevice(t *testing.T) {
	device := &fakeDevice{}
	c := New(device, zaptest.NewLogger(t), WithTimeslice(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, closes := device.counts(); closes == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, closes := device.counts(); closes != 1 {
		t.Fatalf("Expected device closed once, got %d", closes)
	}
	if c.Recording() {
		t.Error("Expected cancellation to end the session")
	}
	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording after cancel, got %v", err)
	}
}
