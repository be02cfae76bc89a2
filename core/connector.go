package core

import (
	"context"
	"time"
)

// ConnectorState is the lifecycle state of one channel connector. It lives
// exactly as long as the connector object owning it.
type ConnectorState int

const (
	// StateIdle is the initial state before initialization begins.
	StateIdle ConnectorState = iota
	// StateInitializing means the external handshake is in progress.
	StateInitializing
	// StateAwaitingPairing means the transport issued a pairing payload and
	// is waiting for the remote side to confirm it.
	StateAwaitingPairing
	// StateOnline means the transport confirmed an authenticated session.
	StateOnline
	// StateDisconnected means the transport lost its session. Re-initialization
	// is an explicit external action; the connector never retries on its own.
	StateDisconnected
	// StateAuthFailed is terminal: the credential failure is unrecoverable and
	// the connector is expected to be destroyed by its owner.
	StateAuthFailed
)

// String returns the lowercase state name.
func (s ConnectorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateOnline:
		return "online"
	case StateDisconnected:
		return "disconnected"
	case StateAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state permits no further session activity.
func (s ConnectorState) Terminal() bool {
	return s == StateDisconnected || s == StateAuthFailed
}

// TransportEvent is a polymorphic event emitted by a channel transport.
// Concrete event types implement the unexported isTransportEvent marker
// enabling a closed set.
type TransportEvent interface{ isTransportEvent() }

// PairingEvent carries a one-time pairing code issued by the transport.
// Transports may emit it more than once per session lifetime.
type PairingEvent struct {
	Code string
}

func (PairingEvent) isTransportEvent() {}

// ReadyEvent signals an authenticated channel session.
type ReadyEvent struct {
	SelfAddress string // the channel identity the session is bound to
}

func (ReadyEvent) isTransportEvent() {}

// MessageEvent carries one inbound channel message.
type MessageEvent struct {
	From      string // counterparty address
	FromName  string // counterparty display name, if the transport knows it
	Body      string
	Timestamp time.Time
}

func (MessageEvent) isTransportEvent() {}

// DisconnectedEvent signals loss of an authenticated session (remote logout,
// network loss).
type DisconnectedEvent struct {
	Reason string
}

func (DisconnectedEvent) isTransportEvent() {}

// AuthFailedEvent signals an unrecoverable credential failure.
type AuthFailedEvent struct {
	Err error
}

func (AuthFailedEvent) isTransportEvent() {}

// Transport owns one heavyweight external channel resource. Exactly one
// connector holds a transport at a time; no other component touches it.
//
// Contract:
//   - Start begins the external handshake and returns the event stream. The
//     stream is closed when the transport shuts down.
//   - Send delivers one outbound message to a counterparty address.
//   - Close releases the external resource and must be safe to call more
//     than once.
type Transport interface {
	Start(ctx context.Context) (<-chan TransportEvent, error)
	Send(ctx context.Context, to, body string) error
	Close() error
}
