package provider

import (
	"context"
	"fmt"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// Local is a deterministic in-process provider. It needs no credentials and
// serves as the floor of the candidate list when every remote provider is
// unavailable, and as a predictable target in tests.
type Local struct {
	responses map[string]string
}

// NewLocal creates a local provider with optional canned responses keyed by
// payload.
func NewLocal(responses map[string]string) *Local {
	return &Local{responses: responses}
}

// Name returns the provider identifier.
func (p *Local) Name() string {
	return "local"
}

// Invoke echoes a deterministic acknowledgment of the task.
func (p *Local) Invoke(_ context.Context, task domain.Task) (*Result, error) {
	if resp, ok := p.responses[task.Payload]; ok {
		return &Result{Output: resp, TokensUsed: len(resp) / 4}, nil
	}
	output := fmt.Sprintf("[local:%s] %s", task.Type, task.Payload)
	return &Result{Output: output, TokensUsed: len(output) / 4}, nil
}

// Ping always succeeds.
func (p *Local) Ping(context.Context) error {
	return nil
}
