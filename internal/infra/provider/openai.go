package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// OpenAI routes tasks to the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI provider for the given model.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string {
	return "openai"
}

// Invoke sends the task payload as a single user message.
func (p *OpenAI) Invoke(ctx context.Context, task domain.Task) (*Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(task.Payload),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return nil, normalizeOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &CallError{Provider: p.Name(), Err: fmt.Errorf("empty choices")}
	}

	return &Result{
		Output:     resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Ping lists models, the cheapest authenticated round-trip the API offers.
func (p *OpenAI) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return normalizeOpenAIError(err)
	}
	return nil
}

func normalizeOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &CallError{Provider: "openai", Status: apiErr.StatusCode, Err: err}
	}
	return &CallError{Provider: "openai", Err: err}
}
