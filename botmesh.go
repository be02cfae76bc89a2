// Package botmesh orchestrates channel-bound conversational bot sessions.
// It wires the session registry, channel connectors, the conversation router
// and the generative model adapters into one entry point: an application
// provides a transport per bot plus stores, then starts and stops sessions
// while observers receive the pairing and lifecycle events of the sessions
// they own.
package botmesh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/botmesh/channel"
	"github.com/hupe1980/botmesh/conversation"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/model"
	"github.com/hupe1980/botmesh/model/anthropic"
	"github.com/hupe1980/botmesh/model/openai"
	"github.com/hupe1980/botmesh/registry"
	"github.com/hupe1980/botmesh/router"
	"github.com/hupe1980/botmesh/store"
)

// TransportFactory builds the external channel transport for a bot. Each
// call must return a fresh, unstarted transport.
type TransportFactory func(bot *core.Bot) (core.Transport, error)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Bots stores bot definitions and receives status writes. Defaults to
	// an empty in-memory store.
	Bots core.BotStore
	// Conversations stores turn histories. Defaults to in-memory with the
	// stock retention window.
	Conversations core.ConversationStore
	// Transports is required: it builds the channel transport per bot.
	Transports TransportFactory
	// Generators resolves the generative client per bot. Defaults to
	// provider selection by model name with the bot's own credential.
	Generators router.GeneratorFactory
	// GenerateTimeout bounds one generative provider call.
	GenerateTimeout time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Orchestrator is the top-level session and conversation coordinator.
type Orchestrator struct {
	bots     core.BotStore
	registry *registry.Registry
	logger   logging.Logger
}

// New constructs an orchestrator. The Transports option is required.
func New(optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		Bots:            store.NewInMemoryStore(),
		Conversations:   conversation.NewInMemoryStore(),
		Generators:      DefaultGeneratorFactory,
		GenerateTimeout: router.DefaultGenerateTimeout,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Transports == nil {
		return nil, fmt.Errorf("botmesh: a transport factory is required")
	}

	rt := router.New(func(o *router.Options) {
		o.Conversations = opts.Conversations
		o.Bots = opts.Bots
		o.Generators = opts.Generators
		o.GenerateTimeout = opts.GenerateTimeout
		o.Logger = opts.Logger
	})

	factory := func(bot *core.Bot, observer core.Observer) (*channel.Connector, error) {
		transport, err := opts.Transports(bot)
		if err != nil {
			return nil, fmt.Errorf("build transport for bot %s: %w", bot.ID, err)
		}
		return channel.NewConnector(bot, transport, observer, func(o *channel.Options) {
			o.BotStore = opts.Bots
			o.Handler = rt
			o.Logger = opts.Logger
		}), nil
	}

	return &Orchestrator{
		bots:     opts.Bots,
		registry: registry.New(factory, func(o *registry.Options) { o.Logger = opts.Logger }),
		logger:   opts.Logger,
	}, nil
}

// DefaultGeneratorFactory picks the provider by model name: names with a
// "claude" prefix use Anthropic, everything else OpenAI. The bot's own
// credential is used and never logged.
func DefaultGeneratorFactory(bot *core.Bot) (model.Generator, error) {
	if bot.Generative == nil || bot.Generative.APIKey == "" {
		return nil, fmt.Errorf("bot %s has no provider credential", bot.ID)
	}
	if strings.HasPrefix(bot.Generative.Model, "claude") {
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = bot.Generative.APIKey
		}), nil
	}
	return openai.New(func(o *openai.Options) {
		o.APIKey = bot.Generative.APIKey
	}), nil
}

// StartSession creates and starts the channel session for a bot, replacing
// any session that already exists for it. Lifecycle and pairing events go to
// the given observer only. The bot is marked connecting; it moves online
// once the channel handshake completes.
func (o *Orchestrator) StartSession(ctx context.Context, botID string, observer core.Observer) error {
	bot, err := o.bots.Get(ctx, botID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if err := o.bots.SetStatus(ctx, botID, core.StatusConnecting); err != nil {
		o.logger.Warn("bot status update failed", "bot_id", botID, "error", err)
	}
	if err := o.registry.Create(ctx, bot, observer); err != nil {
		if serr := o.bots.SetStatus(ctx, botID, core.StatusOffline); serr != nil {
			o.logger.Warn("bot status update failed", "bot_id", botID, "error", serr)
		}
		return err
	}
	return nil
}

// StopSession destroys the bot's session and marks it offline. Stopping an
// absent session is a no-op.
func (o *Orchestrator) StopSession(ctx context.Context, botID string) error {
	if err := o.registry.Destroy(ctx, botID); err != nil {
		return err
	}
	if err := o.bots.SetStatus(ctx, botID, core.StatusOffline); err != nil {
		o.logger.Warn("bot status update failed", "bot_id", botID, "error", err)
	}
	return nil
}

// Session returns the live connector for a bot, if any.
func (o *Orchestrator) Session(botID string) (*channel.Connector, bool) {
	return o.registry.Lookup(botID)
}

// Sessions reports the number of live sessions.
func (o *Orchestrator) Sessions() int {
	return o.registry.Len()
}

// Close destroys every live session.
func (o *Orchestrator) Close() error {
	return o.registry.Close()
}
