// Package audio adapts local sound hardware: microphone capture via
// miniaudio and playback of synthesized replies through a system player.
package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

const (
	// SampleRate is the capture rate the recognizer receives.
	SampleRate = 16000
	// CaptureMimeType describes the raw S16LE mono frames MalgoDevice delivers.
	CaptureMimeType = "audio/l16; rate=16000; channels=1"
)

var errDeviceOpen = errors.New("capture device already open")

// MalgoDevice is a capture.Device backed by the default miniaudio input.
type MalgoDevice struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	logger *zap.Logger
}

// NewMalgoDevice creates an unopened microphone device.
func NewMalgoDevice(logger *zap.Logger) *MalgoDevice {
	return &MalgoDevice{logger: logger}
}

// MimeType implements capture.Device
func (d *MalgoDevice) MimeType() string {
	return CaptureMimeType
}

// Open initializes the backend and starts delivering frames to onData.
func (d *MalgoDevice) Open(onData func(audio []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return errDeviceOpen
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.logger.Debug("malgo", zap.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return mapDeviceError(fmt.Errorf("failed to initialize audio context: %w", err))
	}

	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = SampleRate
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency

	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			onData(pInput[:n])
		},
	})
	if err != nil {
		releaseContext(ctx)
		return mapDeviceError(fmt.Errorf("failed to initialize capture device: %w", err))
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return mapDeviceError(fmt.Errorf("failed to start capture device: %w", err))
	}

	d.ctx, d.device = ctx, device
	d.logger.Info("Microphone opened", zap.Int("sampleRate", SampleRate))
	return nil
}

// Close stops capture and frees the backend. Closing an unopened device is a no-op.
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	var err error
	if stopErr := d.device.Stop(); stopErr != nil {
		err = fmt.Errorf("failed to stop capture device: %w", stopErr)
	}
	d.device.Uninit()
	d.device = nil

	if ctxErr := releaseContext(d.ctx); ctxErr != nil && err == nil {
		err = ctxErr
	}
	d.ctx = nil
	return err
}

func releaseContext(ctx *malgo.AllocatedContext) error {
	if ctx == nil {
		return nil
	}
	err := ctx.Uninit()
	ctx.Free()
	if err != nil {
		return fmt.Errorf("failed to release audio context: %w", err)
	}
	return nil
}

var (
	deniedHints  = []string{"access denied", "permission denied", "not permitted"}
	missingHints = []string{"no device", "does not exist", "no backend", "device not found"}
)

// mapDeviceError tags backend failures with the named capture errors so the
// classifier can tell a refused microphone from a missing one.
func mapDeviceError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, hint := range deniedHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", voiceerr.ErrDeviceNotAllowed, err)
		}
	}
	for _, hint := range missingHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", voiceerr.ErrDeviceNotFound, err)
		}
	}
	return err
}
