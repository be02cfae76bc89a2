package core

import "time"

// BotMode selects the decision pipeline used to answer inbound messages.
type BotMode string

const (
	// ModeGenerative answers every message via the generative provider.
	ModeGenerative BotMode = "generative"
	// ModeRuleBased answers only via rule graph evaluation.
	ModeRuleBased BotMode = "rule-based"
	// ModeHybrid evaluates rules first and falls back to the generative
	// provider when no condition matches.
	ModeHybrid BotMode = "hybrid"
)

// BotStatus reflects the bot's channel connectivity as seen by the
// management layer.
type BotStatus string

const (
	// StatusOffline indicates no live channel session.
	StatusOffline BotStatus = "offline"
	// StatusConnecting indicates a session is initializing or pairing.
	StatusConnecting BotStatus = "connecting"
	// StatusOnline indicates an authenticated channel session.
	StatusOnline BotStatus = "online"
)

// GenerativeConfig holds the provider settings used for generated replies.
type GenerativeConfig struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"` // clamped to [0,2] at call time
	MaxOutputTokens int     `json:"max_output_tokens"`
	Instructions    string  `json:"instructions"`
	APIKey          string  `json:"-"`
}

// Bot is one configured conversational agent bound to one channel identity.
// The orchestrator reads it and writes only Status, MessagesCount and
// LastActivity; everything else is owned by the management layer.
type Bot struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Mode          BotMode           `json:"mode"`
	Graph         *RuleGraph        `json:"graph,omitempty"`
	Generative    *GenerativeConfig `json:"generative,omitempty"`
	Status        BotStatus         `json:"status"`
	MessagesCount int               `json:"messages_count"`
	LastActivity  time.Time         `json:"last_activity"`
}

// Clone returns a deep copy of the bot safe for independent mutation.
func (b *Bot) Clone() *Bot {
	clone := *b
	if b.Graph != nil {
		g := b.Graph.Clone()
		clone.Graph = g
	}
	if b.Generative != nil {
		gc := *b.Generative
		clone.Generative = &gc
	}
	return &clone
}
