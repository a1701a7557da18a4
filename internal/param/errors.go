package param

import (
	"errors"
	"fmt"
)

// ParameterError rejects a command-line token. Building stops at the first
// one and no storage work is started.
type ParameterError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Token is the raw token as the user typed it.
	Token string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes parameter errors.
type ErrorCode string

const (
	// ErrCodeUnknownAlias indicates no handler is registered for the alias or flag.
	ErrCodeUnknownAlias ErrorCode = "UNKNOWN_ALIAS"

	// ErrCodeRejectedValue indicates the handler refused the value.
	ErrCodeRejectedValue ErrorCode = "REJECTED_VALUE"

	// ErrCodeRejectedSource indicates the requesting principal cannot use the parameter.
	ErrCodeRejectedSource ErrorCode = "REJECTED_SOURCE"

	// ErrCodeResolutionFailed indicates an asynchronous resolution failed.
	ErrCodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"
)

func (e *ParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %s: %v", e.Code, e.Token, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %q: %s", e.Code, e.Token, e.Message)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

// AsParameterError returns the ParameterError in err's chain.
func AsParameterError(err error) (*ParameterError, bool) {
	var pe *ParameterError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsParameterError reports whether err rejects a token.
func IsParameterError(err error) bool {
	_, ok := AsParameterError(err)
	return ok
}

func NewUnknownAliasError(token, alias string) *ParameterError {
	return &ParameterError{
		Code:    ErrCodeUnknownAlias,
		Token:   token,
		Message: fmt.Sprintf("no parameter or flag named %q", alias),
	}
}

func NewRejectedValueError(token, value string, err error) *ParameterError {
	return &ParameterError{
		Code:    ErrCodeRejectedValue,
		Token:   token,
		Message: fmt.Sprintf("value %q not accepted", value),
		Err:     err,
	}
}

func NewRejectedSourceError(token, principal string) *ParameterError {
	return &ParameterError{
		Code:    ErrCodeRejectedSource,
		Token:   token,
		Message: fmt.Sprintf("not available to %s", principal),
	}
}

func NewResolutionError(token string, err error) *ParameterError {
	return &ParameterError{
		Code:    ErrCodeResolutionFailed,
		Token:   token,
		Message: "resolution failed",
		Err:     err,
	}
}
