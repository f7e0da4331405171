package ai

import (
	"context"
)

// Provider is one language model backend. Generate returns the raw response text.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
