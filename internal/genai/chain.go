// Package genai generates the astrologer reply from the feature bundle.
//
// This file implements the ordered fallback chain across generators.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nirolabs/niro/internal/models"
)

// FallbackChain tries generators in order and returns the first success.
// With a StubGenerator as its last link the chain never fails, which is
// what the orchestrator relies on.
type FallbackChain struct {
	generators []Generator
}

// NewFallbackChain creates a chain over the given generators, tried in
// the order provided.
func NewFallbackChain(generators ...Generator) *FallbackChain {
	return &FallbackChain{generators: generators}
}

func (c *FallbackChain) Generate(ctx context.Context, payload models.GeneratorPayload) (models.NiroReply, error) {
	var lastErr error
	for i, generator := range c.generators {
		reply, err := generator.Generate(ctx, payload)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		slog.Warn("FallbackChain.Generate: generator failed, trying next", "position", i, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no generators configured")
	}
	return models.NiroReply{}, fmt.Errorf("all generators failed: %w", lastErr)
}
