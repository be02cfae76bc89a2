// Package notify provides core.Observer implementations. Observers receive
// only the events of sessions they requested; delivery never blocks the
// connector pump that produced the event.
package notify

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// DefaultBuffer is the event buffer size of a ChanObserver.
const DefaultBuffer = 16

// ChanObserver delivers events over a buffered channel. When the consumer
// falls behind and the buffer fills, new events are dropped rather than
// stalling the connector.
type ChanObserver struct {
	events chan core.ObserverEvent

	mu     sync.Mutex
	closed bool
}

// NewChanObserver creates an observer with the given buffer size; values
// below one fall back to DefaultBuffer.
func NewChanObserver(buffer int) *ChanObserver {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &ChanObserver{events: make(chan core.ObserverEvent, buffer)}
}

// Notify implements core.Observer.
func (o *ChanObserver) Notify(event core.ObserverEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.events <- event:
	default:
	}
}

// Events returns the receive side of the observer.
func (o *ChanObserver) Events() <-chan core.ObserverEvent {
	return o.events
}

// Close stops delivery and closes the event channel. Safe to call once the
// sessions feeding this observer are destroyed.
func (o *ChanObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.events)
}

// envelope is the wire form of one observer event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSObserver writes observer events to a websocket connection as JSON
// envelopes of the form {"event": <kind>, "data": <payload>}. Writes are
// serialized; a failed write marks the observer dead and later events are
// discarded, since the client is gone anyway.
type WSObserver struct {
	conn   *websocket.Conn
	logger logging.Logger

	mu   sync.Mutex
	dead bool
}

// WSOptions holds dependency overrides passed to NewWSObserver.
type WSOptions struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewWSObserver wraps an established websocket connection. The caller keeps
// ownership of the connection's read side and close handling.
func NewWSObserver(conn *websocket.Conn, optFns ...func(o *WSOptions)) *WSObserver {
	opts := WSOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WSObserver{conn: conn, logger: opts.Logger}
}

// Notify implements core.Observer.
func (o *WSObserver) Notify(event core.ObserverEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dead {
		return
	}
	if err := o.conn.WriteJSON(envelope{Event: event.Kind(), Data: event}); err != nil {
		o.dead = true
		o.logger.Warn("observer websocket write failed", "event", event.Kind(), "error", err)
	}
}

// Close marks the observer dead and closes the underlying connection.
func (o *WSObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dead = true
	return o.conn.Close()
}
