package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arturoeanton/stackmemory/internal/port"
)

// IsRateLimited is the default retry classifier for GenerateWithFallback.
func IsRateLimited(err error) bool {
	return errors.Is(err, port.ErrRateLimited)
}

// FallbackGenerator retries a failed generation once on a secondary model.
type FallbackGenerator struct {
	primary   port.Generator
	secondary port.Generator
	retryable func(error) bool
}

// GenerateWithFallback wraps primary so that an error classified as retryable
// is retried once on secondary. A nil secondary disables the fallback and a
// nil classifier defaults to IsRateLimited.
func GenerateWithFallback(primary, secondary port.Generator, retryable func(error) bool) *FallbackGenerator {
	if retryable == nil {
		retryable = IsRateLimited
	}
	return &FallbackGenerator{primary: primary, secondary: secondary, retryable: retryable}
}

// ModelName returns the primary model name.
func (g *FallbackGenerator) ModelName() string {
	return g.primary.ModelName()
}

// Generate implements port.Generator.
func (g *FallbackGenerator) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	out, err := g.primary.Generate(ctx, req)
	if err == nil || g.secondary == nil || !g.retryable(err) {
		return out, err
	}
	slog.Warn("primary model unavailable, falling back",
		"primary", g.primary.ModelName(),
		"secondary", g.secondary.ModelName(),
		"error", err,
	)
	return g.secondary.Generate(ctx, req)
}
