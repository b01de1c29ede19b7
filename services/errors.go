package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a store failure other than an idempotency conflict.
	ErrPersistence = errors.New("persistence failed")
)

type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindValidation  ErrorKind = "validation"
	KindPersistence ErrorKind = "persistence"
)

// ErrorKindOf classifies an error returned by the engine.
func ErrorKindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindPersistence
	}
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
