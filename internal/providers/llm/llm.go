package llm

import "context"

// Provider is the text-completion collaborator: prompt in, free-form text
// out. Callers own parsing and all fallback behavior; implementations do not
// retry.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
