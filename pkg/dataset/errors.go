package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidNumber is returned when an integer field cannot be parsed.
	ErrInvalidNumber = errors.New("invalid integer")

	// ErrSourceNotFound is returned when the dataset location does not exist.
	ErrSourceNotFound = errors.New("dataset source not found")
)

// ValidationError is a structural problem in one record. It aborts the
// whole ingestion run.
type ValidationError struct {
	// Record is the 1-based position of the record in the source.
	Record int
	Field  string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("dataset record %d: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("dataset record %d: field %q: %v", e.Record, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
