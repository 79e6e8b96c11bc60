package wire

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sameerkhansf/vapi-takehome/domain"
)

// ErrClosed is returned by Send after a terminal event was written.
var ErrClosed = errors.New("wire: stream already terminated")

// Writer writes events as newline-delimited JSON and flushes after every line
// so each event reaches the client as soon as it is produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	mu      sync.Mutex
	done    bool
}

// NewWriter wraps w. Flushing is skipped when w does not support it.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// Send encodes and writes one event. Once a terminal event is written, every
// later call fails with ErrClosed.
func (sw *Writer) Send(event domain.PipelineEvent) error {
	line, err := Encode(event)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.done {
		return ErrClosed
	}
	if event.Terminal() {
		sw.done = true
	}

	if _, err := sw.w.Write(line); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event.Kind(), err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Terminated reports whether a terminal event has been written.
func (sw *Writer) Terminated() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.done
}
