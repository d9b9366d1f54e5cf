package backend

import (
	"errors"
	"fmt"
)

// ErrEmptyCredential is returned when Fetch is called without an API key. No
// request is sent in that case.
var ErrEmptyCredential = errors.New("please enter an API key")

// RequestFailedError reports a non-2xx response from the backend.
type RequestFailedError struct {
	StatusCode int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("backend responded with status %d", e.StatusCode)
}

// NetworkError reports a transport failure: DNS, refused connection, timeout
// or cancellation.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid health response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Outcome labels used for logs and metrics.
const (
	OutcomeOK              = "ok"
	OutcomeEmptyCredential = "empty_credential"
	OutcomeRequestFailed   = "request_failed"
	OutcomeNetworkError    = "network_error"
	OutcomeDecodeError     = "decode_error"
)

// OutcomeOf classifies err into one of the outcome labels.
func OutcomeOf(err error) string {
	var (
		reqErr *RequestFailedError
		netErr *NetworkError
		decErr *DecodeError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrEmptyCredential):
		return OutcomeEmptyCredential
	case errors.As(err, &reqErr):
		return OutcomeRequestFailed
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	case errors.As(err, &decErr):
		return OutcomeDecodeError
	default:
		return "unknown"
	}
}
