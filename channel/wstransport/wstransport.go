// Package wstransport implements core.Transport over a websocket connection
// to an external channel gateway. The gateway speaks a small JSON protocol:
// each inbound frame carries a "type" discriminator (pairing, ready, message,
// disconnected, auth_failed) and outbound sends are {"type":"send",...}
// frames. The transport decodes frames into transport events and leaves all
// session semantics to the connector.
package wstransport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second

	// eventBuffer absorbs short bursts from the gateway without stalling
	// the read pump behind a slow connector.
	eventBuffer = 64
)

// frame is one gateway message in either direction.
type frame struct {
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	Self      string `json:"self,omitempty"`
	From      string `json:"from,omitempty"`
	FromName  string `json:"from_name,omitempty"`
	To        string `json:"to,omitempty"`
	Body      string `json:"body,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Options holds configuration overrides passed to New.
type Options struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Header is sent with the websocket handshake, typically auth.
	Header map[string][]string
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Transport is a websocket-backed core.Transport. It is single-use: after
// Close it cannot be restarted.
type Transport struct {
	url    string
	dialer *websocket.Dialer
	header map[string][]string
	logger logging.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	events    chan core.TransportEvent
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a transport that will connect to the given gateway URL.
func New(url string, optFns ...func(o *Options)) *Transport {
	opts := Options{
		Dialer: websocket.DefaultDialer,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Transport{
		url:    url,
		dialer: opts.Dialer,
		header: opts.Header,
		logger: opts.Logger,
		events: make(chan core.TransportEvent, eventBuffer),
		closed: make(chan struct{}),
	}
}

// Start implements core.Transport. It dials the gateway and spawns the read
// and ping pumps. The returned channel is closed when the connection ends.
func (t *Transport) Start(ctx context.Context) (<-chan core.TransportEvent, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", t.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}

	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go t.readPump(ctx, conn)
	go t.pingPump(ctx, conn)

	return t.events, nil
}

// readPump decodes gateway frames into transport events until the
// connection or the context ends.
func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn) {
	defer close(t.events)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-t.closed:
				// Deliberate close, not a session loss.
			case <-ctx.Done():
			default:
				t.logger.Warn("gateway read failed", "error", err)
				t.emit(ctx, core.DisconnectedEvent{Reason: "connection lost"})
			}
			return
		}

		ev, ok := t.decode(f)
		if !ok {
			continue
		}
		t.emit(ctx, ev)

		// A terminal frame from the gateway ends the session.
		switch ev.(type) {
		case core.DisconnectedEvent, core.AuthFailedEvent:
			return
		}
	}
}

// decode maps one gateway frame to a transport event. Unknown frame types
// and broadcast status noise are skipped.
func (t *Transport) decode(f frame) (core.TransportEvent, bool) {
	switch f.Type {
	case "pairing":
		return core.PairingEvent{Code: f.Code}, true
	case "ready":
		return core.ReadyEvent{SelfAddress: f.Self}, true
	case "message":
		if f.From == "status@broadcast" {
			return nil, false
		}
		ts := time.Now()
		if f.Timestamp > 0 {
			ts = time.Unix(f.Timestamp, 0)
		}
		return core.MessageEvent{From: f.From, FromName: f.FromName, Body: f.Body, Timestamp: ts}, true
	case "disconnected":
		return core.DisconnectedEvent{Reason: f.Reason}, true
	case "auth_failed":
		return core.AuthFailedEvent{Err: fmt.Errorf("gateway auth failed: %s", f.Error)}, true
	default:
		t.logger.Debug("unknown gateway frame skipped", "type", f.Type)
		return nil, false
	}
}

func (t *Transport) emit(ctx context.Context, ev core.TransportEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	case <-t.closed:
	}
}

// pingPump keeps the connection alive.
func (t *Transport) pingPump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		}
	}
}

// Send implements core.Transport by writing a send frame to the gateway.
func (t *Transport) Send(ctx context.Context, to, body string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("transport not started")
	}
	select {
	case <-t.closed:
		return fmt.Errorf("transport closed")
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	payload, err := json.Marshal(frame{Type: "send", To: to, Body: body})
	if err != nil {
		return err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send to %s failed: %w", to, err)
	}
	return nil
}

// Close implements core.Transport. It sends a close frame, tears down the
// connection and unblocks the pumps. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)

		t.writeMu.Lock()
		conn := t.conn
		if conn != nil {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			err = conn.Close()
		}
		t.writeMu.Unlock()
	})
	return err
}
