package vssapi

import (
	"errors"
	"fmt"
)

// Error is a non-2xx response from the VSS API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// TransportError wraps a request that never produced an HTTP response.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("vssapi: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a network level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
