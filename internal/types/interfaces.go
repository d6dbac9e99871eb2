package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
// Complete receives the whole ordered conversation and returns one completion.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}
