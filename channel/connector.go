package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Sender delivers one outbound message through a live channel session.
// *Connector satisfies it; the router depends on this narrow view only.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Handler consumes inbound channel messages. The conversation router
// implements it; a no-op default keeps connectors usable in isolation.
type Handler interface {
	HandleInbound(ctx context.Context, bot *core.Bot, sender Sender, observer core.Observer, msg core.MessageEvent)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, bot *core.Bot, sender Sender, observer core.Observer, msg core.MessageEvent)

// HandleInbound implements Handler.
func (f HandlerFunc) HandleInbound(ctx context.Context, bot *core.Bot, sender Sender, observer core.Observer, msg core.MessageEvent) {
	f(ctx, bot, sender, observer, msg)
}

// Options holds dependency overrides passed to NewConnector.
type Options struct {
	// BotStore receives status and activity writes. Nil disables them.
	BotStore core.BotStore
	// Handler receives inbound messages. Nil discards them.
	Handler Handler
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Connector owns exactly one transport and its session state machine. All
// events for one bot flow through the connector's own pump goroutine so
// connectors for different bots execute concurrently and independently.
type Connector struct {
	bot       *core.Bot
	transport core.Transport
	observer  core.Observer
	bots      core.BotStore
	handler   Handler
	logger    logging.Logger

	mu    sync.RWMutex
	state core.ConnectorState

	runCtx    context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	destroyed bool

	destroyOnce sync.Once
	destroyErr  error
}

// NewConnector creates a connector in the Idle state. Start begins the
// external handshake.
func NewConnector(bot *core.Bot, transport core.Transport, observer core.Observer, optFns ...func(o *Options)) *Connector {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Handler == nil {
		opts.Handler = HandlerFunc(func(context.Context, *core.Bot, Sender, core.Observer, core.MessageEvent) {})
	}
	return &Connector{
		bot:       bot,
		transport: transport,
		observer:  observer,
		bots:      opts.BotStore,
		handler:   opts.Handler,
		logger:    opts.Logger,
		state:     core.StateIdle,
		done:      make(chan struct{}),
	}
}

// Bot returns the bot this connector is bound to.
func (c *Connector) Bot() *core.Bot { return c.bot }

// State returns the current connector state.
func (c *Connector) State() core.ConnectorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start moves Idle to Initializing, begins the transport handshake and
// spawns the event pump. The connector's lifetime is decoupled from the
// caller's context: only Destroy ends it.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("connector for bot %s is destroyed", c.bot.ID)
	}
	if c.state != core.StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connector for bot %s already started (state %s)", c.bot.ID, state)
	}
	c.state = core.StateInitializing
	c.runCtx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.logger.Info("connector initializing", "bot_id", c.bot.ID)

	events, err := c.transport.Start(c.runCtx)
	if err != nil {
		c.cancel()
		close(c.done)
		return fmt.Errorf("transport start failed for bot %s: %w", c.bot.ID, err)
	}

	go c.pump(events)
	return nil
}

// pump serializes all transport events for this bot.
func (c *Connector) pump(events <-chan core.TransportEvent) {
	defer close(c.done)
	for {
		select {
		case <-c.runCtx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Connector) handleEvent(ev core.TransportEvent) {
	switch ev := ev.(type) {
	case core.PairingEvent:
		// Transports may re-issue pairing codes; each one is forwarded to
		// the observer that requested the session and to nobody else.
		c.setState(core.StateAwaitingPairing)
		c.observer.Notify(core.PairingPayload{BotID: c.bot.ID, Payload: PairingArtifact(ev.Code)})

	case core.ReadyEvent:
		c.setState(core.StateOnline)
		c.setStatus(core.StatusOnline)
		c.observer.Notify(core.SessionOnline{BotID: c.bot.ID})

	case core.MessageEvent:
		// Buffered messages may arrive while technically transitioning, so
		// anything short of a terminal state is routed.
		if c.State().Terminal() {
			return
		}
		c.handler.HandleInbound(c.runCtx, c.bot, c, c.observer, ev)

	case core.DisconnectedEvent:
		c.setState(core.StateDisconnected)
		c.setStatus(core.StatusOffline)
		c.observer.Notify(core.SessionOffline{BotID: c.bot.ID, Reason: ev.Reason})

	case core.AuthFailedEvent:
		c.setState(core.StateAuthFailed)
		c.setStatus(core.StatusOffline)
		c.logger.Error("connector auth failed", "bot_id", c.bot.ID, "error", ev.Err)
		c.observer.Notify(core.SessionError{BotID: c.bot.ID, Err: ev.Err})
	}
}

func (c *Connector) setState(next core.ConnectorState) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev == next {
		return
	}
	if tl, ok := c.logger.(logging.ConnectorTransitionLogger); ok {
		tl.LogConnectorTransition(c.bot.ID, prev.String(), next.String())
		return
	}
	c.logger.Info("connector state changed", "bot_id", c.bot.ID, "from", prev.String(), "to", next.String())
}

func (c *Connector) setStatus(status core.BotStatus) {
	if c.bots == nil {
		return
	}
	if err := c.bots.SetStatus(c.runCtx, c.bot.ID, status); err != nil {
		c.logger.Warn("bot status update failed", "bot_id", c.bot.ID, "status", string(status), "error", err)
	}
}

// Send implements Sender by delegating to the transport.
func (c *Connector) Send(ctx context.Context, to, body string) error {
	return c.transport.Send(ctx, to, body)
}

// Context returns the connector's lifetime context. Work derived from it is
// cancelled by Destroy.
func (c *Connector) Context() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

// Destroy cancels in-flight work and releases the external channel resource.
// It is valid from any state and safe to call more than once; the resource
// is released before Destroy returns.
func (c *Connector) Destroy() error {
	c.destroyOnce.Do(func() {
		c.mu.Lock()
		c.destroyed = true
		if c.cancel != nil {
			c.cancel()
		} else {
			// Start was never called; nothing is pumping.
			close(c.done)
		}
		c.mu.Unlock()
		c.destroyErr = c.transport.Close()
		<-c.done
		c.logger.Info("connector destroyed", "bot_id", c.bot.ID)
	})
	return c.destroyErr
}
