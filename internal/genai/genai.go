// Package genai provides the generative-text collaborator used by
// GENERATE_AI_INSIGHT actions, backed by the OpenAI chat completions API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// systemPrompt frames every insight request.
const systemPrompt = "You are a supportive personal wellbeing assistant. " +
	"Reply with one short, practical insight in plain text, grounded only in the context provided."

var (
	// ErrNoChoicesReturned is returned when the API answers without any choice.
	ErrNoChoicesReturned = errors.New("genai: no choices returned")

	// ErrEmptyResponse is returned when the first choice has no text.
	ErrEmptyResponse = errors.New("genai: empty response")

	// ErrMissingAPIKey is returned by NewClient without an API key.
	ErrMissingAPIKey = errors.New("genai: api key is required")
)

// chatService is the part of the OpenAI SDK the client uses.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerMinute caps outbound calls. Zero disables the limiter.
	RequestsPerMinute float64
}

// Client generates text through the chat completions API. It implements
// automation.Generator and is safe for concurrent use.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient creates a client. The SDK's own retries are disabled: a failed
// call surfaces immediately as a failed action.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(opts...)
	return newClient(&cli.Chat.Completions, cfg), nil
}

func newClient(chat chatService, cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	c := &Client{chat: chat, model: model, timeout: cfg.Timeout}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return c
}

// Generate answers prompt using supporting as context material.
func (c *Client) Generate(ctx context.Context, prompt, supporting string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("genai: waiting for rate limit: %w", err)
		}
	}

	user := prompt
	if supporting != "" {
		user = prompt + "\n\nContext:\n" + supporting
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("genai: chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
