package feed

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeValidation ErrCode = "validation_error"
	CodeNotFound   ErrCode = "not_found"
	CodeConflict   ErrCode = "conflict"
	CodeInternal   ErrCode = "internal"
)

// Error is the engine's error type. Retryable errors mean the caller should
// repeat the whole operation from scratch.
type Error struct {
	Code      ErrCode
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func ErrValidation(msg string) error { return &Error{Code: CodeValidation, Message: msg} }
func ErrNotFound(msg string) error   { return &Error{Code: CodeNotFound, Message: msg} }

// ErrConflict marks lock-wait timeouts and serialization aborts.
func ErrConflict(msg string, cause error) error {
	return &Error{Code: CodeConflict, Message: msg, Retryable: true, Err: cause}
}

func ErrInternal(msg string, cause error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: cause}
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

func IsNotFound(err error) bool { return err != nil && CodeOf(err) == CodeNotFound }

func IsRetryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Retryable
}

// wrapInternal leaves engine errors untouched and wraps anything else.
func wrapInternal(msg string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return ErrInternal(msg, err)
}
