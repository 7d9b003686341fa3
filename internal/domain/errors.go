package domain

import "errors"

var (
	// ErrConfiguration marks missing credentials, unknown provider kinds and
	// unresolvable locations. Constructors return it before any work is done.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks a reference database that does not exist. Callers
	// treat it as "feature unavailable".
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned by Add when an id already exists or repeats
	// within the batch.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrCollectionAbsent is returned by operations on a collection that was
	// dropped and not recreated.
	ErrCollectionAbsent = errors.New("collection absent")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidFilter   = errors.New("invalid filter")
)

// BackendError wraps a vector store or embedding API failure with the
// operation that triggered it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err, or returns nil when err is nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
