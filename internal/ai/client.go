package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/yaadak/yaadak/internal/config"
)

// ErrAIParse marks any failure of the natural-language service, transport
// or content. Callers surface it to the user as a generic "try rephrasing".
var ErrAIParse = errors.New("ai parse failed")

// Completer is the minimal completion surface the parser needs. Tests swap
// in a lookup table keyed by the user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client talks to an OpenAI-compatible chat endpoint (OpenRouter by
// default). One retry on transport error, total time bounded by the
// configured timeout.
type Client struct {
	api   openai.Client
	model string
	cfg   config.AI
}

func NewClient(cfg config.AI) *Client {
	return &Client{
		api: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
		model: cfg.Model,
		cfg:   cfg,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty completion")
			continue
		}
		return stripFences(resp.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("%w: %v", ErrAIParse, lastErr)
}

// stripFences removes a markdown code fence the model may wrap the JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
