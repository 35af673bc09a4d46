package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPersistence wraps every failure talking to the store.
var ErrPersistence = errors.New("persistence error")

// ErrNoVectorColumn is returned by dense operations when the embedding
// column could not be created.
var ErrNoVectorColumn = errors.New("embedding column is not available")

// BootstrapStep is one failed schema statement.
type BootstrapStep struct {
	Name string
	Err  error
}

// BootstrapError collects the schema statements that failed. Callers log it
// and keep going; the store still accepts inserts.
type BootstrapError struct {
	Steps []BootstrapStep
}

func (e *BootstrapError) Error() string {
	parts := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		parts[i] = fmt.Sprintf("%s: %v", s.Name, s.Err)
	}
	return "schema bootstrap: " + strings.Join(parts, "; ")
}

func (e *BootstrapError) Unwrap() []error {
	errs := make([]error, len(e.Steps))
	for i, s := range e.Steps {
		errs[i] = s.Err
	}
	return errs
}

// Add records a failed step.
func (e *BootstrapError) Add(name string, err error) {
	e.Steps = append(e.Steps, BootstrapStep{Name: name, Err: err})
}

// OrNil returns e when any step failed and nil otherwise.
func (e *BootstrapError) OrNil() error {
	if len(e.Steps) == 0 {
		return nil
	}
	return e
}

// Persistence wraps err as a persistence failure of op.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
