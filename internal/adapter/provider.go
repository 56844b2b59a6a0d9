// Package adapter provides implementations for external AI provider integrations.
// It uses the Adapter pattern to hide provider-specific APIs behind ModelInvoker.
package adapter

import (
	"context"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// ModelInvoker sends one prompt to one named model and returns the raw generated text.
// Implementations make exactly one outbound call and never retry; failures are
// reported as *domain.EnrichError of kind transport or rate_limit.
type ModelInvoker interface {
	Generate(ctx context.Context, model, prompt string, cfg domain.GenerationConfig) (string, error)
}

// InvokerFunc adapts a plain function to ModelInvoker.
type InvokerFunc func(ctx context.Context, model, prompt string, cfg domain.GenerationConfig) (string, error)

// Generate calls f.
func (f InvokerFunc) Generate(ctx context.Context, model, prompt string, cfg domain.GenerationConfig) (string, error) {
	return f(ctx, model, prompt, cfg)
}
