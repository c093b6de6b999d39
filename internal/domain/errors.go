package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Callers match with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrLengthMismatch    = errors.New("length mismatch")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNoReadableInput   = errors.New("no readable input")
)

// ServiceError wraps a failure from the inference service: network errors,
// non-2xx responses, and malformed payloads all land here. The pipeline
// propagates these unchanged; no retry is attempted.
type ServiceError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("inference service %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("inference service %s: %v", e.Endpoint, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
