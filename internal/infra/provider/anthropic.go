package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// Anthropic routes tasks to the Claude messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic provider for the given model.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Invoke sends the task payload as a single user message.
func (p *Anthropic) Invoke(ctx context.Context, task domain.Task) (*Result, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(task.Payload)),
		},
	})
	if err != nil {
		return nil, normalizeAnthropicError(err)
	}

	var output string
	for _, block := range resp.Content {
		if block.Type == "text" {
			output += block.Text
		}
	}

	return &Result{
		Output:     output,
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// Ping lists models as a minimal-cost probe.
func (p *Anthropic) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return normalizeAnthropicError(err)
	}
	return nil
}

func normalizeAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &CallError{Provider: "anthropic", Status: apiErr.StatusCode, Err: err}
	}
	return &CallError{Provider: "anthropic", Err: err}
}
