// Package prompt assembles bounded prompts for the generative response
// client. The builder always keeps the system instructions first and the new
// user message last, trimming the oldest retained history turns first until
// the token estimate fits the budget.
package prompt

import (
	"strings"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/model"
)

// DefaultContextSize is assumed for models missing from the catalog.
const DefaultContextSize = 4096

// contextSizes catalogs maximum context sizes for known models.
var contextSizes = map[string]int{
	"gpt-3.5-turbo":       4096,
	"gpt-3.5-turbo-16k":   16384,
	"gpt-4":               8192,
	"gpt-4-turbo-preview": 128000,
	"gpt-4o":              128000,
	"gpt-4o-mini":         128000,
}

// ContextSize returns the maximum context size for a model. Claude models
// share one large window; unknown models fall back to DefaultContextSize.
func ContextSize(modelID string) int {
	if size, ok := contextSizes[modelID]; ok {
		return size
	}
	if strings.HasPrefix(modelID, "claude") {
		return 200000
	}
	return DefaultContextSize
}

// Budget returns the token budget available for the prompt: the model's
// context size minus the requested max output tokens.
func Budget(modelID string, maxOutputTokens int) int {
	b := ContextSize(modelID) - maxOutputTokens
	if b < 0 {
		return 0
	}
	return b
}

// EstimateTokens cheaply approximates the token cost of a text at roughly
// four characters per token, rounding up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Build assembles the ordered prompt. The system message (instructions plus
// the compacted-context summary, when present) comes first and is never
// trimmed; the new user message comes last and is never trimmed; as many of
// the most recent history turns as fit are inserted in between, dropping the
// oldest retained turn first until the running estimate is within budget.
func Build(instructions, summary string, history []core.Turn, newMessage string, budget int) []model.Message {
	system := instructions
	if summary != "" {
		system += "\n\nPrevious conversation context:\n" + summary
	}

	fixed := EstimateTokens(system) + EstimateTokens(newMessage)
	retained := make([]model.Message, 0, len(history))
	for _, turn := range history {
		role := model.RoleUser
		if turn.Sender == core.SenderAgent {
			role = model.RoleAssistant
		}
		retained = append(retained, model.Message{Role: role, Content: turn.Content})
	}

	running := fixed
	for _, m := range retained {
		running += EstimateTokens(m.Content)
	}
	for running > budget && len(retained) > 0 {
		running -= EstimateTokens(retained[0].Content)
		retained = retained[1:]
	}

	messages := make([]model.Message, 0, len(retained)+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	messages = append(messages, retained...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: newMessage})
	return messages
}
