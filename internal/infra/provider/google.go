package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// Google routes tasks to the Gemini API.
type Google struct {
	client *genai.Client
	model  string
}

// NewGoogle creates a Gemini provider for the given model.
func NewGoogle(apiKey, model string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &Google{client: client, model: model}, nil
}

// Name returns the provider identifier.
func (p *Google) Name() string {
	return "google"
}

// Invoke sends the task payload as the prompt.
func (p *Google) Invoke(ctx context.Context, task domain.Task) (*Result, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(task.Payload), nil)
	if err != nil {
		return nil, normalizeGoogleError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &CallError{Provider: p.Name(), Err: fmt.Errorf("empty candidates")}
	}

	var output string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			output += part.Text
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Result{Output: output, TokensUsed: tokens}, nil
}

// Ping counts tokens on a fixed string, which authenticates without
// consuming generation quota.
func (p *Google) Ping(ctx context.Context) error {
	if _, err := p.client.Models.CountTokens(ctx, p.model, genai.Text("ping"), nil); err != nil {
		return normalizeGoogleError(err)
	}
	return nil
}

func normalizeGoogleError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{Provider: "google", Status: apiErr.Code, Err: err}
	}
	return &CallError{Provider: "google", Err: err}
}
