package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

// FileChunkSize is how many bytes of a file FileDevice delivers per callback.
const FileChunkSize = 1024

// FileDevice replays an audio file as if it were being recorded. It lets the
// capture pipeline run headless against a prepared utterance.
type FileDevice struct {
	path     string
	mimeType string
	interval time.Duration

	mu        sync.Mutex
	stop      chan struct{}
	stopped   chan struct{}
	drained   chan struct{}
	drainOnce sync.Once
}

// NewFileDevice replays path, pausing interval between chunks. An empty
// mimeType is derived from the file extension.
func NewFileDevice(path, mimeType string, interval time.Duration) *FileDevice {
	if mimeType == "" {
		mimeType = MimeTypeForFile(path)
	}
	return &FileDevice{
		path:     path,
		mimeType: mimeType,
		interval: interval,
		drained:  make(chan struct{}),
	}
}

// MimeType returns the content type of the replayed file.
func (d *FileDevice) MimeType() string {
	return d.mimeType
}

// Drained is closed once the whole file has been delivered.
func (d *FileDevice) Drained() <-chan struct{} {
	return d.drained
}

// Open reads the file and starts delivering it to onData.
func (d *FileDevice) Open(onData func(audio []byte)) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", voiceerr.ErrDeviceNotFound, d.path)
		}
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return errDeviceOpen
	}
	d.stop = make(chan struct{})
	d.stopped = make(chan struct{})

	go d.replay(data, onData, d.stop, d.stopped)
	return nil
}

func (d *FileDevice) replay(data []byte, onData func([]byte), stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for start := 0; start < len(data); start += FileChunkSize {
		end := start + FileChunkSize
		if end > len(data) {
			end = len(data)
		}
		select {
		case <-stop:
			return
		default:
		}
		onData(data[start:end])

		if d.interval > 0 {
			select {
			case <-stop:
				return
			case <-time.After(d.interval):
			}
		}
	}
	d.drainOnce.Do(func() { close(d.drained) })
}

// Close stops delivery and waits for the replay goroutine.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	stop, stopped := d.stop, d.stopped
	d.stop, d.stopped = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-stopped
	return nil
}

// MimeTypeForFile maps an audio file extension to the content type the
// server expects.
func MimeTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg; codecs=opus"
	case ".webm":
		return "audio/webm; codecs=opus"
	case ".ulaw", ".mulaw":
		return "audio/basic"
	default:
		return CaptureMimeType
	}
}
