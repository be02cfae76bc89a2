package core

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36) // UUID length
	assert.NotEqual(t, id, NewID())
}

func TestBotClone(t *testing.T) {
	bot := &Bot{
		ID:   "b1",
		Mode: ModeHybrid,
		Graph: &RuleGraph{Nodes: []Node{
			{ID: "n1", Type: NodeCondition, Data: NodeData{Conditions: []Condition{
				{Match: MatchContains, Value: "price", Response: "reply"},
			}}},
		}},
		Generative: &GenerativeConfig{Model: "gpt-4o", APIKey: "sk-secret"},
	}

	clone := bot.Clone()
	clone.Graph.Nodes[0].Data.Conditions[0].Response = "mutated"
	clone.Generative.Model = "mutated"

	assert.Equal(t, "reply", bot.Graph.Nodes[0].Data.Conditions[0].Response)
	assert.Equal(t, "gpt-4o", bot.Generative.Model)
}

func TestConversationClone(t *testing.T) {
	conv := NewConversation(ConversationKey{BotID: "b1", Counterparty: "alice@example"})
	conv.Turns = append(conv.Turns, NewTurn(SenderCounterparty, "hello"))

	clone := conv.Clone()
	clone.Turns[0].Content = "mutated"
	clone.Turns = append(clone.Turns, NewTurn(SenderAgent, "extra"))

	require.Len(t, conv.Turns, 1)
	assert.Equal(t, "hello", conv.Turns[0].Content)
}

func TestNewTurn(t *testing.T) {
	turn := NewTurn(SenderAgent, "hi")
	assert.Equal(t, SenderAgent, turn.Sender)
	assert.Equal(t, "hi", turn.Content)
	assert.NotEmpty(t, turn.ID)
	assert.False(t, turn.Timestamp.IsZero())
	assert.Zero(t, turn.TokensUsed)
}

func TestConnectorStateString(t *testing.T) {
	tests := map[ConnectorState]string{
		StateIdle:            "idle",
		StateInitializing:    "initializing",
		StateAwaitingPairing: "awaiting_pairing",
		StateOnline:          "online",
		StateDisconnected:    "disconnected",
		StateAuthFailed:      "auth_failed",
		ConnectorState(99):   "unknown",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}

func TestConnectorStateTerminal(t *testing.T) {
	assert.True(t, StateDisconnected.Terminal())
	assert.True(t, StateAuthFailed.Terminal())
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateInitializing.Terminal())
	assert.False(t, StateAwaitingPairing.Terminal())
	assert.False(t, StateOnline.Terminal())
}

func TestSessionErrorMarshalsErrorText(t *testing.T) {
	payload, err := json.Marshal(SessionError{BotID: "b1", Err: fmt.Errorf("gateway auth failed: credential revoked")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bot_id":"b1","error":"gateway auth failed: credential revoked"}`, string(payload))

	payload, err = json.Marshal(SessionError{BotID: "b1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bot_id":"b1"}`, string(payload))
}

func TestObserverEventKinds(t *testing.T) {
	assert.Equal(t, "pairing-payload", PairingPayload{}.Kind())
	assert.Equal(t, "session-online", SessionOnline{}.Kind())
	assert.Equal(t, "session-offline", SessionOffline{}.Kind())
	assert.Equal(t, "session-error", SessionError{}.Kind())
	assert.Equal(t, "turn-added", TurnAdded{}.Kind())
}
