// Package provider implements upstream model provider adapters.
//
// This package contains:
//   - Provider interface: the execution layer's only view of an upstream
//   - OpenAI, Anthropic, Google adapters over their official SDKs
//   - Local: a deterministic keyless adapter for tests and degraded operation
//   - CallError: normalized error carrying the upstream HTTP status
package provider

import (
	"context"
	"fmt"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// Result is the normalized successful output of a provider call.
type Result struct {
	Output     string
	TokensUsed int
}

// Provider wraps one upstream target. The execution layer depends only on
// this contract: a payload, a token count, and success or a classifiable
// error.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Invoke executes the task against the upstream and returns its output.
	Invoke(ctx context.Context, task domain.Task) (*Result, error)

	// Ping performs a minimal-cost health probe.
	Ping(ctx context.Context) error
}

// CallError normalizes an upstream failure with its HTTP status so error
// classification can branch on the status code before falling back to
// message matching.
type CallError struct {
	Provider string
	Status   int
	Err      error
}

func (e *CallError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s call failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
