package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/model"
)

func TestContextSize(t *testing.T) {
	assert.Equal(t, 4096, ContextSize("gpt-3.5-turbo"))
	assert.Equal(t, 128000, ContextSize("gpt-4o"))
	assert.Equal(t, 200000, ContextSize("claude-3-5-sonnet-latest"))
	assert.Equal(t, DefaultContextSize, ContextSize("some-future-model"))
}

func TestBudget(t *testing.T) {
	assert.Equal(t, 3596, Budget("gpt-3.5-turbo", 500))
	assert.Equal(t, 0, Budget("gpt-3.5-turbo", 5000))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestBuildOrdering(t *testing.T) {
	history := []core.Turn{
		{Sender: core.SenderCounterparty, Content: "first question"},
		{Sender: core.SenderAgent, Content: "first answer"},
	}

	msgs := Build("be helpful", "", history, "new question", 100000)
	require.Len(t, msgs, 4)

	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "be helpful", msgs[0].Content)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "first answer", msgs[2].Content)
	assert.Equal(t, model.RoleUser, msgs[3].Role)
	assert.Equal(t, "new question", msgs[3].Content)
}

func TestBuildIncludesSummaryInSystemMessage(t *testing.T) {
	msgs := Build("be helpful", "they asked about pricing", nil, "hi", 100000)
	require.NotEmpty(t, msgs)

	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "be helpful"))
	assert.Contains(t, msgs[0].Content, "Previous conversation context:")
	assert.Contains(t, msgs[0].Content, "they asked about pricing")
}

func TestBuildTrimsOldestHistoryFirst(t *testing.T) {
	history := []core.Turn{
		{Sender: core.SenderCounterparty, Content: strings.Repeat("a", 400)}, // ~100 tokens
		{Sender: core.SenderAgent, Content: strings.Repeat("b", 400)},
		{Sender: core.SenderCounterparty, Content: strings.Repeat("c", 400)},
	}

	// Fixed cost is ~2 tokens; room for roughly two history turns only.
	msgs := Build("sys", "", history, "now", 220)
	require.Len(t, msgs, 4)

	assert.Contains(t, msgs[1].Content, "b")
	assert.Contains(t, msgs[2].Content, "c")
	assert.Equal(t, "now", msgs[3].Content)
}

func TestBuildNeverTrimsSystemOrNewMessage(t *testing.T) {
	history := []core.Turn{
		{Sender: core.SenderCounterparty, Content: strings.Repeat("x", 4000)},
	}

	msgs := Build("sys", "", history, "new", 1)
	require.Len(t, msgs, 2)

	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "new", msgs[1].Content)
}
