package core

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies which side of a conversation authored a turn.
type Sender string

const (
	// SenderCounterparty is the remote party the bot is conversing with.
	SenderCounterparty Sender = "counterparty"
	// SenderAgent is the bot itself.
	SenderAgent Sender = "agent"
)

// Turn is a single message exchanged within a conversation. After being
// appended it should be treated as immutable.
type Turn struct {
	ID         string    `json:"id"`
	Sender     Sender    `json:"sender"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	TokensUsed int       `json:"tokens_used,omitempty"`
}

// NewTurn creates a turn with a fresh identifier and UTC timestamp.
func NewTurn(sender Sender, content string) Turn {
	return Turn{ID: NewID(), Sender: sender, Content: content, Timestamp: time.Now().UTC()}
}

// ConversationKey uniquely identifies one conversation: a bot paired with
// one remote counterparty address.
type ConversationKey struct {
	BotID        string `json:"bot_id"`
	Counterparty string `json:"counterparty"`
}

// Conversation holds the bounded ordered turn history for one
// (bot, counterparty) pair, plus an optional compressed-context summary once
// older turns have been compacted away.
type Conversation struct {
	Key              ConversationKey `json:"key"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	Turns            []Turn          `json:"turns"`
	Summary          string          `json:"summary,omitempty"`
	Created          time.Time       `json:"created"`
	Updated          time.Time       `json:"updated"`
}

// NewConversation creates an empty conversation for the given key.
func NewConversation(key ConversationKey) *Conversation {
	now := time.Now().UTC()
	return &Conversation{Key: key, Turns: []Turn{}, Created: now, Updated: now}
}

// Clone returns a deep copy safe for independent mutation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Turns = make([]Turn, len(c.Turns))
	copy(clone.Turns, c.Turns)
	return &clone
}

// NewID generates a new unique identifier for turns and events.
func NewID() string { return uuid.NewString() }
