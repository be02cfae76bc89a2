// Package store provides the in-memory BotStore implementation. Durable
// persistence engines are external collaborators: they plug in behind the
// same core.BotStore interface.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/botmesh/core"
)

var (
	// ErrNotFound is returned when a bot with the given id does not exist in
	// the underlying store.
	ErrNotFound = fmt.Errorf("bot not found")
)

// InMemoryStore is a volatile BotStore implementation storing bots in a
// process local map. It is safe for concurrent access and returns defensive
// copies to avoid external mutation of internal state.
type InMemoryStore struct {
	mu   sync.RWMutex
	bots map[string]*core.Bot
}

// NewInMemoryStore constructs an empty in-memory bot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bots: make(map[string]*core.Bot)}
}

// Put inserts or replaces a bot. Intended for the management layer and tests.
func (s *InMemoryStore) Put(bot *core.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[bot.ID] = bot.Clone()
}

// Get implements core.BotStore.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bot.Clone(), nil
}

// SetStatus implements core.BotStore.
func (s *InMemoryStore) SetStatus(_ context.Context, id string, status core.BotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	bot.Status = status
	if status == core.StatusOnline {
		bot.LastActivity = time.Now().UTC()
	}
	return nil
}

// RecordActivity implements core.BotStore.
func (s *InMemoryStore) RecordActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	bot.MessagesCount++
	bot.LastActivity = time.Now().UTC()
	return nil
}
