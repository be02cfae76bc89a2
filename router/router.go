// Package router consumes inbound channel messages and produces replies.
// For each message it resolves the conversation, records the inbound turn,
// picks the decision pipeline for the bot's mode (rule evaluation,
// generative fallback, or both) and sends the reply back through the
// connector. Failures degrade to fixed human-readable fallback strings; a
// bad message never takes down its connector, and the inbound turn is
// recorded even when reply generation fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/botmesh/channel"
	"github.com/hupe1980/botmesh/conversation"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/flow"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/model"
	"github.com/hupe1980/botmesh/prompt"
)

// Sentinel errors for reply failure categories so tests and callers can
// assert on the specific step that failed.
var (
	// ErrNotConfigured indicates the bot lacks the configuration its mode
	// requires (rule graph, generative settings).
	ErrNotConfigured = fmt.Errorf("bot not configured")
	// ErrGraphInvalid indicates the rule graph failed to compile.
	ErrGraphInvalid = fmt.Errorf("rule graph invalid")
)

// DefaultGenerateTimeout bounds one generative provider call.
const DefaultGenerateTimeout = 60 * time.Second

// Fallbacks are the fixed user-facing strings substituted for a reply when
// one cannot be produced.
type Fallbacks struct {
	// NotUnderstood answers a rule-based bot whose graph matched nothing.
	// A deliberate terminal fallback, not an error.
	NotUnderstood string
	// Misconfigured answers configuration failures (missing graph or
	// generative settings).
	Misconfigured string
	// BadCredential answers missing or rejected provider credentials.
	BadCredential string
	// Generic answers every other failure category.
	Generic string
}

// DefaultFallbacks returns the stock fallback strings.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		NotUnderstood: "Sorry, I didn't understand your message. Could you rephrase it?",
		Misconfigured: "This bot is not configured yet. Please contact the operator.",
		BadCredential: "The assistant's provider credential is invalid. Please check the bot settings.",
		Generic:       "Sorry, something went wrong while processing your message. Please try again.",
	}
}

// GeneratorFactory resolves the generative client for a bot. It is where
// provider selection and credential handling live.
type GeneratorFactory func(bot *core.Bot) (model.Generator, error)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Conversations stores turn histories. Defaults to in-memory.
	Conversations core.ConversationStore
	// Bots receives message counter / last-activity writes. Nil disables them.
	Bots core.BotStore
	// Generators resolves a model.Generator per bot. Nil makes every
	// generative path a configuration failure.
	Generators GeneratorFactory
	// GenerateTimeout bounds one provider call.
	GenerateTimeout time.Duration
	// Fallbacks overrides the stock user-facing failure strings.
	Fallbacks Fallbacks
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Router implements channel.Handler. Messages for one (bot, counterparty)
// conversation are processed strictly in arrival order; unrelated
// conversations proceed concurrently.
type Router struct {
	conversations core.ConversationStore
	bots          core.BotStore
	generators    GeneratorFactory
	timeout       time.Duration
	fallbacks     Fallbacks
	logger        logging.Logger

	mu     sync.Mutex
	queues map[core.ConversationKey]*convQueue

	graphMu sync.Mutex
	graphs  map[string]*graphEntry
}

// graphEntry caches one bot's compiled rule graph so regexes compile once
// per graph, not once per message. The source pointer detects replaced
// graphs across session re-creations.
type graphEntry struct {
	source *core.RuleGraph
	graph  *flow.Graph
	err    error
}

type job struct {
	ctx      context.Context
	bot      *core.Bot
	sender   channel.Sender
	observer core.Observer
	msg      core.MessageEvent
}

type convQueue struct {
	jobs     []job
	draining bool
}

// New constructs a Router with optional overrides.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		Conversations:   conversation.NewInMemoryStore(),
		GenerateTimeout: DefaultGenerateTimeout,
		Fallbacks:       DefaultFallbacks(),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		conversations: opts.Conversations,
		bots:          opts.Bots,
		generators:    opts.Generators,
		timeout:       opts.GenerateTimeout,
		fallbacks:     opts.Fallbacks,
		logger:        opts.Logger,
		queues:        make(map[core.ConversationKey]*convQueue),
		graphs:        make(map[string]*graphEntry),
	}
}

// compiledGraph returns the cached compiled form of the bot's rule graph,
// compiling on first use or when the graph was replaced.
func (r *Router) compiledGraph(bot *core.Bot) (*flow.Graph, error) {
	r.graphMu.Lock()
	defer r.graphMu.Unlock()
	entry, ok := r.graphs[bot.ID]
	if !ok || entry.source != bot.Graph {
		graph, err := flow.Compile(bot.Graph)
		entry = &graphEntry{source: bot.Graph, graph: graph, err: err}
		r.graphs[bot.ID] = entry
	}
	return entry.graph, entry.err
}

// HandleInbound implements channel.Handler. It appends the message to its
// conversation's FIFO queue and returns quickly so the connector pump keeps
// draining transport events; a per-conversation worker preserves arrival
// order while unrelated conversations run in parallel.
func (r *Router) HandleInbound(ctx context.Context, bot *core.Bot, sender channel.Sender, observer core.Observer, msg core.MessageEvent) {
	key := core.ConversationKey{BotID: bot.ID, Counterparty: msg.From}

	r.mu.Lock()
	q, ok := r.queues[key]
	if !ok {
		q = &convQueue{}
		r.queues[key] = q
	}
	q.jobs = append(q.jobs, job{ctx: ctx, bot: bot, sender: sender, observer: observer, msg: msg})
	if !q.draining {
		q.draining = true
		go r.drain(key, q)
	}
	r.mu.Unlock()
}

// drain processes one conversation's queue serially until it runs dry.
func (r *Router) drain(key core.ConversationKey, q *convQueue) {
	for {
		r.mu.Lock()
		if len(q.jobs) == 0 {
			q.draining = false
			delete(r.queues, key)
			r.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		r.mu.Unlock()

		r.process(key, j)
	}
}

// process runs the full pipeline for one message, containing panics so one
// malformed conversation cannot take down its connector.
func (r *Router) process(key core.ConversationKey, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling message", "bot_id", key.BotID, "counterparty", key.Counterparty, "panic", rec)
		}
	}()

	start := time.Now()
	err := r.handle(key, j)
	if ml, ok := r.logger.(logging.MessageLogger); ok {
		ml.LogMessageHandled(key.BotID, key.Counterparty, time.Since(start), err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("message handling failed", "bot_id", key.BotID, "counterparty", key.Counterparty, "duration", time.Since(start), "error", err)
		return
	}
	r.logger.Debug("message handled", "bot_id", key.BotID, "counterparty", key.Counterparty, "duration", time.Since(start))
}

func (r *Router) handle(key core.ConversationKey, j job) error {
	ctx := j.ctx

	conv, err := r.conversations.GetOrCreate(ctx, key, j.msg.FromName)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	inbound := core.NewTurn(core.SenderCounterparty, j.msg.Body)
	if !j.msg.Timestamp.IsZero() {
		inbound.Timestamp = j.msg.Timestamp
	}
	if err := r.conversations.AppendTurn(ctx, key, inbound); err != nil {
		return fmt.Errorf("append inbound turn: %w", err)
	}
	r.recordActivity(ctx, j.bot.ID)
	j.observer.Notify(core.TurnAdded{
		BotID:     j.bot.ID,
		Key:       key,
		Sender:    inbound.Sender,
		Content:   inbound.Content,
		Timestamp: inbound.Timestamp,
	})

	reply, tokens, replyErr := r.respond(ctx, j.bot, conv, j.msg.Body)
	if replyErr != nil {
		// The inbound turn is already recorded; the fallback reply below
		// keeps the conversation consistent for the counterparty.
		r.logger.Warn("reply degraded to fallback", "bot_id", j.bot.ID, "counterparty", key.Counterparty, "error", replyErr)
	}
	if reply == "" {
		return nil
	}

	if err := j.sender.Send(ctx, j.msg.From, reply); err != nil {
		// No retry loop: the generated content is dropped.
		r.logger.Error("outbound send failed", "bot_id", j.bot.ID, "counterparty", key.Counterparty, "error", err)
		return nil
	}

	outbound := core.NewTurn(core.SenderAgent, reply)
	outbound.TokensUsed = tokens
	if err := r.conversations.AppendTurn(ctx, key, outbound); err != nil {
		return fmt.Errorf("append outbound turn: %w", err)
	}
	r.recordActivity(ctx, j.bot.ID)
	j.observer.Notify(core.TurnAdded{
		BotID:     j.bot.ID,
		Key:       key,
		Sender:    outbound.Sender,
		Content:   outbound.Content,
		Timestamp: outbound.Timestamp,
	})
	return nil
}

func (r *Router) recordActivity(ctx context.Context, botID string) {
	if r.bots == nil {
		return
	}
	if err := r.bots.RecordActivity(ctx, botID); err != nil {
		r.logger.Warn("activity update failed", "bot_id", botID, "error", err)
	}
}

// respond computes the reply for one message according to the bot's mode.
// The returned string is always sendable; the error, when non-nil, names the
// failure category that degraded the reply to a fallback.
func (r *Router) respond(ctx context.Context, bot *core.Bot, conv *core.Conversation, text string) (string, int, error) {
	switch bot.Mode {
	case core.ModeGenerative:
		instructions := ""
		if bot.Generative != nil {
			instructions = bot.Generative.Instructions
		}
		return r.generate(ctx, bot, conv, text, instructions)

	case core.ModeRuleBased, core.ModeHybrid:
		if bot.Graph == nil {
			return r.fallbacks.Misconfigured, 0, fmt.Errorf("%w: bot %s has no rule graph", ErrNotConfigured, bot.ID)
		}
		graph, err := r.compiledGraph(bot)
		if err != nil {
			return r.fallbacks.Generic, 0, fmt.Errorf("%w: bot %s: %v", ErrGraphInvalid, bot.ID, err)
		}
		if reply, ok := graph.Evaluate(text); ok {
			return reply, 0, nil
		}
		if bot.Mode == core.ModeRuleBased {
			// Deliberate terminal fallback for a rule-only bot.
			return r.fallbacks.NotUnderstood, 0, nil
		}
		instructions := ""
		if bot.Generative != nil {
			instructions = bot.Generative.Instructions
		}
		if graph.HasGenerativeNode() && graph.GenerativeInstructions() != "" {
			instructions = graph.GenerativeInstructions()
		}
		return r.generate(ctx, bot, conv, text, instructions)

	default:
		return r.fallbacks.Generic, 0, fmt.Errorf("unknown bot mode %q", bot.Mode)
	}
}

// generate calls the generative response client under a deadline derived
// from the connector's lifetime context, mapping taxonomy failures to the
// matching fallback string.
func (r *Router) generate(ctx context.Context, bot *core.Bot, conv *core.Conversation, text, instructions string) (string, int, error) {
	if bot.Generative == nil {
		return r.fallbacks.Misconfigured, 0, fmt.Errorf("%w: bot %s has no generative config", ErrNotConfigured, bot.ID)
	}
	if r.generators == nil {
		return r.fallbacks.Misconfigured, 0, fmt.Errorf("%w: no generator factory", ErrNotConfigured)
	}

	gen, err := r.generators(bot)
	if err != nil {
		return r.fallbacks.BadCredential, 0, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	if instructions == "" {
		instructions = "You are a helpful assistant."
	}
	modelID := bot.Generative.Model
	if modelID == "" {
		modelID = "gpt-3.5-turbo"
	}
	maxOut := bot.Generative.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = 500
	}

	messages := prompt.Build(instructions, conv.Summary, conv.Turns, text, prompt.Budget(modelID, maxOut))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := gen.Generate(callCtx, model.Request{
		Model:           modelID,
		Messages:        messages,
		Temperature:     bot.Generative.Temperature,
		MaxOutputTokens: maxOut,
	})
	if err != nil {
		r.logModelCall(modelID, 0, time.Since(start), err)
		switch {
		case errors.Is(err, model.ErrInvalidCredential):
			return r.fallbacks.BadCredential, 0, err
		default:
			return r.fallbacks.Generic, 0, err
		}
	}

	r.logModelCall(modelID, reply.TokensUsed, time.Since(start), nil)
	return reply.Text, reply.TokensUsed, nil
}

func (r *Router) logModelCall(modelID string, tokens int, dur time.Duration, err error) {
	if ml, ok := r.logger.(logging.ModelCallLogger); ok {
		ml.LogModelCall(modelID, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("model call failed", "model", modelID, "duration", dur, "error", err)
		return
	}
	r.logger.Debug("model call completed", "model", modelID, "tokens", tokens, "duration", dur)
}
