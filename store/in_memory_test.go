package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.BotStore = (*InMemoryStore)(nil)

func TestGetUnknownBot(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.SetStatus(context.Background(), "missing", core.StatusOnline), ErrNotFound)
	assert.ErrorIs(t, store.RecordActivity(context.Background(), "missing"), ErrNotFound)
}

func TestPutAndGetReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	store.Put(&core.Bot{ID: "b1", Name: "Bot One", Mode: core.ModeRuleBased})

	bot, err := store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "Bot One", bot.Name)

	bot.Name = "mutated"
	again, err := store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "Bot One", again.Name)
}

func TestSetStatus(t *testing.T) {
	store := NewInMemoryStore()
	store.Put(&core.Bot{ID: "b1"})

	require.NoError(t, store.SetStatus(context.Background(), "b1", core.StatusConnecting))
	bot, err := store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusConnecting, bot.Status)
	assert.True(t, bot.LastActivity.IsZero())

	// Going online stamps last activity.
	require.NoError(t, store.SetStatus(context.Background(), "b1", core.StatusOnline))
	bot, err = store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusOnline, bot.Status)
	assert.False(t, bot.LastActivity.IsZero())
}

func TestRecordActivity(t *testing.T) {
	store := NewInMemoryStore()
	store.Put(&core.Bot{ID: "b1"})

	require.NoError(t, store.RecordActivity(context.Background(), "b1"))
	require.NoError(t, store.RecordActivity(context.Background(), "b1"))

	bot, err := store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, bot.MessagesCount)
	assert.False(t, bot.LastActivity.IsZero())
}
