package services

import (
	"context"

	"github.com/courseforge/api/services/openrouter"
)

// CompletionGateway is the slice of the OpenRouter client the generation
// services depend on. Injected so tests can substitute a fake and count
// upstream calls.
type CompletionGateway interface {
	Complete(ctx context.Context, systemPrompt, userPayload string, options ...openrouter.Option) (*openrouter.Completion, error)
}
