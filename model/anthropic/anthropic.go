// Package anthropic provides a model.Generator backed by the Anthropic
// Messages API with the same error translation guarantees as the OpenAI
// adapter.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/botmesh/model"
)

// Options configure the Anthropic generator adapter.
type Options struct {
	APIKey string
}

// Generator wraps the Anthropic Messages API behind model.Generator.
type Generator struct {
	client anthropic.Client
}

// New creates a generator using the given API key. An empty key falls back
// to the SDK's environment-based configuration.
func New(optFns ...func(o *Options)) *Generator {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Generator{client: anthropic.NewClient(clientOpts...)}
}

// Generate implements model.Generator.
func (g *Generator) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case model.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(model.ClampTemperature(req.Temperature)),
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	return &model.Reply{
		Text:       text,
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// translateError maps SDK failures into the local taxonomy.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrTransient, err)
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return fmt.Errorf("%w: anthropic: status %d", model.TranslateStatus(apierr.StatusCode, ""), apierr.StatusCode)
	}
	return fmt.Errorf("%w: %v", model.ErrTransient, err)
}
