package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/siherrmann/handbot/model"
)

// ErrEmptyResponse is returned when a backend answers without text
var ErrEmptyResponse = errors.New("empty response")

// Generator sends a prompt to a language model and returns the generated text
type Generator interface {
	Generate(ctx context.Context, prompt model.Prompt) (string, error)
	Backend() string
}

// BackendError is returned by every Generator on failure
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(backend string, err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Backend: backend, Err: err}
}
