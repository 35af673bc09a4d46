package retrieval

import (
	"errors"
	"net/http"

	"github.com/papercomputeco/corpus/pkg/dataset"
	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/storage"
)

// ErrInvalidQuery marks a request the engine cannot answer as given.
var ErrInvalidQuery = errors.New("invalid query")

// Kind classifies retrieval failures for callers.
type Kind string

const (
	KindUpstream    Kind = "upstream"
	KindPersistence Kind = "persistence"
	KindValidation  Kind = "validation"
	KindInternal    Kind = "internal"
)

// ErrorKind returns the class of err.
func ErrorKind(err error) Kind {
	var verr *dataset.ValidationError
	switch {
	case errors.Is(err, embeddings.ErrUpstream):
		return KindUpstream
	case errors.Is(err, storage.ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrInvalidQuery), errors.As(err, &verr):
		return KindValidation
	default:
		return KindInternal
	}
}

// Status maps a kind to the HTTP status the API answers with.
func (k Kind) Status() int {
	switch k {
	case KindUpstream:
		return http.StatusBadGateway
	case KindPersistence:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage formats err as "<kind>: <message>".
func ErrorMessage(err error) string {
	return string(ErrorKind(err)) + ": " + err.Error()
}
