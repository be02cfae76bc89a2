package core

import (
	"encoding/json"
	"time"
)

// ObserverEvent is a polymorphic event delivered to the observer that
// requested a session. Concrete event types implement the unexported
// isObserverEvent marker enabling a closed set. Kind returns the stable wire
// name used by remote observer adapters.
type ObserverEvent interface {
	isObserverEvent()
	Kind() string
}

// PairingPayload carries the renderable pairing artifact for one pairing
// cycle. It is only ever delivered to the observer that initiated the
// session.
type PairingPayload struct {
	BotID   string `json:"bot_id"`
	Payload string `json:"payload"`
}

func (PairingPayload) isObserverEvent() {}

// Kind implements ObserverEvent.
func (PairingPayload) Kind() string { return "pairing-payload" }

// SessionOnline signals that the connector reached Online.
type SessionOnline struct {
	BotID string `json:"bot_id"`
}

func (SessionOnline) isObserverEvent() {}

// Kind implements ObserverEvent.
func (SessionOnline) Kind() string { return "session-online" }

// SessionOffline signals that the connector left Online.
type SessionOffline struct {
	BotID  string `json:"bot_id"`
	Reason string `json:"reason,omitempty"`
}

func (SessionOffline) isObserverEvent() {}

// Kind implements ObserverEvent.
func (SessionOffline) Kind() string { return "session-offline" }

// SessionError signals an unrecoverable connector failure.
type SessionError struct {
	BotID string `json:"bot_id"`
	Err   error  `json:"-"`
}

func (SessionError) isObserverEvent() {}

// Kind implements ObserverEvent.
func (SessionError) Kind() string { return "session-error" }

// MarshalJSON renders the wrapped error as plain text so remote observers
// receive the terminal error, not just the bot identifier.
func (e SessionError) MarshalJSON() ([]byte, error) {
	var msg string
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		BotID string `json:"bot_id"`
		Error string `json:"error,omitempty"`
	}{BotID: e.BotID, Error: msg})
}

// TurnAdded is emitted for every turn appended to a conversation.
type TurnAdded struct {
	BotID     string          `json:"bot_id"`
	Key       ConversationKey `json:"key"`
	Sender    Sender          `json:"sender"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

func (TurnAdded) isObserverEvent() {}

// Kind implements ObserverEvent.
func (TurnAdded) Kind() string { return "turn-added" }

// Observer receives session events scoped to the client that requested the
// session. Implementations must not block for long: Notify is called from
// connector and router goroutines.
type Observer interface {
	Notify(event ObserverEvent)
}
