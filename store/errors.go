package store

import "errors"

var (
	// ErrNotFound reports a valid lookup that matched no row.
	ErrNotFound = errors.New("store: record not found")

	// ErrReadOnly is returned by writes against a read-only store.
	ErrReadOnly = errors.New("store: database is read-only")
)

// Error is a statement, transaction or commit failure reported by the engine.
type Error struct {
	Op    string
	Table string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "store: " + e.Op + " " + e.Table + ": " + e.Err.Error()
}

// Unwrap returns the underlying engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsFailure reports whether err is a store failure rather than an expected
// outcome such as ErrNotFound.
func IsFailure(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}
