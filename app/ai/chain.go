package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrNoProviders = errors.New("no AI providers configured")

// Attempt records one provider call of a chain run.
type Attempt struct {
	Provider string
	Duration time.Duration
	Err      error
}

type Result struct {
	Analysis *Analysis
	Provider string // the provider that produced Analysis
	Attempts []Attempt
}

// Chain tries providers in order until one returns a parsable analysis. Each attempt gets its own
// timeout; no provider is retried.
type Chain struct {
	providers []Provider
	timeout   time.Duration
}

func NewChain(timeout time.Duration, providers ...Provider) *Chain {
	return &Chain{providers: providers, timeout: timeout}
}

func (c *Chain) Len() int {
	return len(c.providers)
}

func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Run returns the first successful analysis. When every provider fails the error joins the errors
// of all attempts; Result.Attempts is filled either way.
func (c *Chain) Run(ctx context.Context, req Request) (Result, error) {
	var result Result
	if len(c.providers) == 0 {
		return result, ErrNoProviders
	}

	var errs []error
	for _, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		started := time.Now()
		analysis, err := c.attempt(ctx, provider, req)
		attempt := Attempt{Provider: provider.Name(), Duration: time.Since(started), Err: err}
		result.Attempts = append(result.Attempts, attempt)

		if err == nil {
			result.Analysis = analysis
			result.Provider = provider.Name()
			return result, nil
		}

		slog.Warn("AI provider failed", "provider", attempt.Provider, "duration", attempt.Duration, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
	}

	return result, errors.Join(errs...)
}

func (c *Chain) attempt(ctx context.Context, provider Provider, req Request) (*Analysis, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	return ParseAnalysis(raw)
}
