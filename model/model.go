// Package model defines the generative response client abstraction used to
// produce replies when rule evaluation does not apply. Provider adapters live
// in subpackages and translate vendor failures into the local error taxonomy
// defined in errors.go; raw provider errors never cross this boundary.
package model

import "context"

// Role identifies the author of a prompt message.
type Role string

const (
	// RoleSystem carries the bot's instructions.
	RoleSystem Role = "system"
	// RoleUser carries counterparty messages.
	RoleUser Role = "user"
	// RoleAssistant carries prior agent replies.
	RoleAssistant Role = "assistant"
)

// Message is one entry of an ordered prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request captures one normalized generation call.
type Request struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Temperature     float64   `json:"temperature"`
	MaxOutputTokens int       `json:"max_output_tokens"`
}

// Reply is the provider's answer plus its reported token usage.
type Reply struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// Generator produces a single reply for a prompt. Implementations must
// honor context cancellation and return only errors from the local taxonomy
// (wrapped with detail as needed).
type Generator interface {
	Generate(ctx context.Context, req Request) (*Reply, error)
}

// ClampTemperature bounds a temperature to the provider-accepted [0,2] range.
func ClampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}
