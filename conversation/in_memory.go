package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// DefaultRetention is the number of most recent turns kept verbatim before
// older turns are compacted into the summary.
const DefaultRetention = 20

// Options configure the in-memory store.
type Options struct {
	// Retention bounds the verbatim turn history per conversation.
	Retention int
	// Summarizer compacts turns that fall out of retention.
	Summarizer Summarizer
}

// InMemoryStore is a volatile ConversationStore implementation keeping
// conversations in a process local map. It is safe for concurrent access and
// returns defensive copies so callers cannot mutate internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[core.ConversationKey]*core.Conversation
	retention     int
	summarizer    Summarizer
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Retention:  DefaultRetention,
		Summarizer: NewKeywordSummarizer(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &InMemoryStore{
		conversations: make(map[core.ConversationKey]*core.Conversation),
		retention:     opts.Retention,
		summarizer:    opts.Summarizer,
	}
}

// GetOrCreate implements core.ConversationStore.
func (s *InMemoryStore) GetOrCreate(_ context.Context, key core.ConversationKey, counterpartyName string) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[key]
	if !ok {
		conv = core.NewConversation(key)
		s.conversations[key] = conv
	}
	if counterpartyName != "" {
		conv.CounterpartyName = counterpartyName
	}
	conv.Updated = time.Now().UTC()
	return conv.Clone(), nil
}

// AppendTurn implements core.ConversationStore. Turns are appended in call
// order; once the history exceeds the retention threshold the overflow is
// summarized and dropped.
func (s *InMemoryStore) AppendTurn(_ context.Context, key core.ConversationKey, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[key]
	if !ok {
		conv = core.NewConversation(key)
		s.conversations[key] = conv
	}
	conv.Turns = append(conv.Turns, turn)
	conv.Updated = time.Now().UTC()

	if len(conv.Turns) > s.retention && s.summarizer != nil {
		overflow := len(conv.Turns) - s.retention
		older := make([]core.Turn, overflow)
		copy(older, conv.Turns[:overflow])
		conv.Summary = s.summarizer.Summarize(older)
		conv.Turns = append(conv.Turns[:0:0], conv.Turns[overflow:]...)
	}
	return nil
}

// Len reports the number of tracked conversations.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
