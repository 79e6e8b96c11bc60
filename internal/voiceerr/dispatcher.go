package voiceerr

import (
	"sync"

	"go.uber.org/zap"
)

// Listener receives every classified error handled by a Dispatcher.
type Listener func(*Error)

// Dispatcher classifies failures and broadcasts them to registered listeners.
// It is created by the application root and handed to whoever reports errors.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
	logger    *zap.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[uint64]Listener),
		logger:    logger,
	}
}

// AddListener registers fn and returns a function that removes it again.
func (d *Dispatcher) AddListener(fn Listener) (remove func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.order = append(d.order, id)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.listeners, id)
			for i, v := range d.order {
				if v == id {
					d.order = append(d.order[:i], d.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Handle classifies err, logs it and notifies every listener in registration
// order. A nil err is ignored.
func (d *Dispatcher) Handle(err error) *Error {
	return d.dispatch(Classify(err))
}

func (d *Dispatcher) dispatch(verr *Error) *Error {
	if verr == nil {
		return nil
	}

	d.logger.Error("Voice AI error",
		zap.String("code", string(verr.Code)),
		zap.String("message", verr.Message),
		zap.Error(verr.Details))

	d.mu.RLock()
	snapshot := make([]Listener, 0, len(d.order))
	for _, id := range d.order {
		snapshot = append(snapshot, d.listeners[id])
	}
	d.mu.RUnlock()

	for _, fn := range snapshot {
		fn(verr)
	}
	return verr
}
