package llm

import (
	"context"
	"time"

	"github.com/siherrmann/handbot/model"
)

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout gives every call of g a deadline of d.
// Errors, including an expired deadline, are returned as *BackendError.
func WithTimeout(g Generator, d time.Duration) Generator {
	return &timeoutGenerator{next: g, timeout: d}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	text, err := t.next.Generate(ctx, prompt)
	if err != nil {
		return "", backendError(t.next.Backend(), err)
	}
	return text, nil
}

func (t *timeoutGenerator) Backend() string {
	return t.next.Backend()
}
