package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned for operations a backend cannot perform.
	ErrNotSupported = errors.New("not supported by this storage backend")

	// ErrQueryFailed wraps every error from a lookup.
	ErrQueryFailed = errors.New("query failed")

	// ErrNotConnected is returned when an adapter is used before Connect.
	ErrNotConnected = errors.New("storage not connected")
)

// ErrorCode classifies backend errors.
type ErrorCode string

const (
	// ErrCodeConflict indicates a duplicate key.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeConstraint indicates a foreign key or check violation.
	ErrCodeConstraint ErrorCode = "CONSTRAINT"

	// ErrCodeUnavailable indicates the backend could not be reached.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// ErrCodeInternal covers everything else.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// StorageError is a classified backend error.
type StorageError struct {
	Op   string
	Code ErrorCode
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err. A nil err yields nil.
func NewStorageError(op string, code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Code: code, Err: err}
}

// ErrorCodeOf returns the code of the StorageError in err's chain, or "".
func ErrorCodeOf(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsConflict reports whether err is a duplicate key error.
func IsConflict(err error) bool {
	return ErrorCodeOf(err) == ErrCodeConflict
}

// IsUnavailable reports whether err means the backend is unreachable.
func IsUnavailable(err error) bool {
	return ErrorCodeOf(err) == ErrCodeUnavailable
}

// QueryError marks err as a failed lookup.
func QueryError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrQueryFailed, err)
}
