package vector

import "errors"

var (
	// ErrMalformed is returned when a vector literal or value cannot be decoded.
	ErrMalformed = errors.New("malformed vector")

	// ErrDimension is returned when a vector does not have the configured dimension.
	ErrDimension = errors.New("vector dimension mismatch")

	// ErrConnection is returned when the vector index cannot be reached.
	ErrConnection = errors.New("vector index connection failed")
)
