package core

import "context"

// BotStore exposes the slice of bot state the orchestrator is allowed to
// touch. The management layer owns everything else about a bot.
type BotStore interface {
	// Get returns the bot or an error when it does not exist.
	Get(ctx context.Context, id string) (*Bot, error)
	// SetStatus records the bot's channel connectivity.
	SetStatus(ctx context.Context, id string, status BotStatus) error
	// RecordActivity increments the bot's message counter and refreshes its
	// last-activity timestamp.
	RecordActivity(ctx context.Context, id string) error
}

// ConversationStore persists conversation histories. The conversation router
// is the only writer; the persistence collaborator behind an implementation
// is an external sink, not a second writer of in-memory state.
type ConversationStore interface {
	// GetOrCreate returns the conversation for the key, creating it on first
	// contact. A non-empty counterpartyName refreshes the stored display name.
	// Returned conversations are defensive copies.
	GetOrCreate(ctx context.Context, key ConversationKey, counterpartyName string) (*Conversation, error)
	// AppendTurn appends one turn in arrival order. Implementations may
	// compact older turns into the conversation summary once history exceeds
	// their retention threshold.
	AppendTurn(ctx context.Context, key ConversationKey, turn Turn) error
}
