package helper

import "fmt"

// NewError wraps err with the step that failed
func NewError(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}
