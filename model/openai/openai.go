// Package openai provides a model.Generator backed by the OpenAI Chat
// Completions API. It adapts the normalized request into SDK messages and
// translates API failures into the local error taxonomy.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/botmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI generator adapter.
type Options struct {
	APIKey  string
	BaseURL string
}

// Generator wraps the OpenAI Chat Completions API behind model.Generator.
type Generator struct {
	client openai.Client
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
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Generator{client: openai.NewClient(clientOpts...)}
}

// Generate implements model.Generator.
func (g *Generator) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               openai.ChatModel(req.Model),
		Temperature:         openai.Float(model.ClampTemperature(req.Temperature)),
		MaxCompletionTokens: openai.Int(int64(req.MaxOutputTokens)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", model.ErrTransient)
	}

	return &model.Reply{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// translateError maps SDK failures into the local taxonomy. Raw provider
// errors never escape this adapter.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrTransient, err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return fmt.Errorf("%w: openai: %s", model.TranslateStatus(apierr.StatusCode, apierr.Code), apierr.Message)
	}
	return fmt.Errorf("%w: %v", model.ErrTransient, err)
}
