package client

import (
	"errors"
	"fmt"
)

var errMissingToken = errors.New("response carries no session token")

// TransportError means the service could not be reached or answered with
// something that is not the expected JSON.
type TransportError struct {
	Op  string
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

// RejectedError is a non-2xx answer. Detail is the service's message and may
// be empty.
type RejectedError struct {
	Op     string
	Status int
	Detail string
}

func (err *RejectedError) Error() string {
	if err.Detail == "" {
		return fmt.Sprintf("%s: status %d", err.Op, err.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", err.Op, err.Status, err.Detail)
}

// DetailOr returns the service-provided detail of a rejection, or fallback
// for any other error.
func DetailOr(err error, fallback string) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Detail != "" {
		return rejected.Detail
	}
	return fallback
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var transport *TransportError
	return errors.As(err, &transport)
}
