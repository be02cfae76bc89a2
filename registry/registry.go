// Package registry maintains the in-memory map from bot identifier to its
// live channel connector. Mutations are serialized per key so two concurrent
// create calls for the same bot can never leave two live external resources,
// and lookups never block behind a slow create or destroy.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/botmesh/channel"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// ErrClosed is returned by Create after the registry has been shut down.
var ErrClosed = fmt.Errorf("registry closed")

// ConnectorFactory builds a connector for a bot and the observer that
// requested the session. The registry starts the connector itself.
type ConnectorFactory func(bot *core.Bot, observer core.Observer) (*channel.Connector, error)

// Options holds dependency overrides passed to New.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry enforces the at-most-one-live-connector-per-bot invariant. It is
// the only writer of the bot-identifier to connector mapping.
type Registry struct {
	factory ConnectorFactory
	logger  logging.Logger

	mu      sync.RWMutex
	entries map[string]*channel.Connector
	closed  bool

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

// New constructs a registry around a connector factory.
func New(factory ConnectorFactory, optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		factory: factory,
		logger:  opts.Logger,
		entries: make(map[string]*channel.Connector),
		keys:    make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing create/destroy for one bot id.
func (r *Registry) keyLock(botID string) *sync.Mutex {
	r.keyMu.Lock()
	defer r.keyMu.Unlock()
	l, ok := r.keys[botID]
	if !ok {
		l = &sync.Mutex{}
		r.keys[botID] = l
	}
	return l
}

// Create builds and starts a connector for the bot, delivering its events to
// the given observer. An existing connector for the same bot is fully
// destroyed (its external resource released) before the new one is
// constructed. Create returns once the new connector has begun initializing.
func (r *Registry) Create(ctx context.Context, bot *core.Bot, observer core.Observer) error {
	lock := r.keyLock(bot.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	existing := r.entries[bot.ID]
	delete(r.entries, bot.ID)
	r.mu.Unlock()

	if existing != nil {
		if err := existing.Destroy(); err != nil {
			r.logger.Warn("destroy of previous connector failed", "bot_id", bot.ID, "error", err)
		}
	}

	conn, err := r.factory(bot, observer)
	if err != nil {
		return fmt.Errorf("connector factory failed for bot %s: %w", bot.ID, err)
	}
	if err := conn.Start(ctx); err != nil {
		destroyErr := conn.Destroy()
		if destroyErr != nil {
			r.logger.Warn("cleanup after failed start failed", "bot_id", bot.ID, "error", destroyErr)
		}
		return err
	}

	r.mu.Lock()
	if r.closed {
		// Shutdown raced the create; the new external resource must not
		// outlive the registry.
		r.mu.Unlock()
		if destroyErr := conn.Destroy(); destroyErr != nil {
			r.logger.Warn("destroy after closed registry failed", "bot_id", bot.ID, "error", destroyErr)
		}
		return ErrClosed
	}
	r.entries[bot.ID] = conn
	r.mu.Unlock()

	r.logger.Info("session created", "bot_id", bot.ID)
	return nil
}

// Destroy tears down the bot's connector, releasing the external resource
// before returning. Destroying an absent session is a no-op, not an error.
func (r *Registry) Destroy(_ context.Context, botID string) error {
	lock := r.keyLock(botID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	conn := r.entries[botID]
	delete(r.entries, botID)
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Destroy(); err != nil {
		return fmt.Errorf("destroy failed for bot %s: %w", botID, err)
	}
	r.logger.Info("session destroyed", "bot_id", botID)
	return nil
}

// Lookup returns the current connector for a bot. It never blocks behind
// in-flight create or destroy calls.
func (r *Registry) Lookup(botID string) (*channel.Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.entries[botID]
	return conn, ok
}

// Len reports the number of live connectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close destroys every live connector and rejects later creates. Used for
// orchestrator shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	conns := make([]*channel.Connector, 0, len(r.entries))
	for id, conn := range r.entries {
		conns = append(conns, conn)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
