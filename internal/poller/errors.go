package poller

import (
	"fmt"
)

// ErrorKind classifies why a poll failed.
type ErrorKind string

const (
	// KindTimeout means the node did not answer within the poll timeout.
	KindTimeout ErrorKind = "timeout"

	// KindConnection means the request could not be made or the connection broke.
	KindConnection ErrorKind = "connection"

	// KindHTTPStatus means the node answered with a status other than 200.
	KindHTTPStatus ErrorKind = "http_status"

	// KindDecode means the body was not a valid measurement envelope.
	KindDecode ErrorKind = "decode"
)

// PollError is returned by [Client.Poll] when a poll does not yield a measurement.
type PollError struct {
	Kind ErrorKind

	// StatusCode is set for KindHTTPStatus and KindDecode, zero otherwise.
	StatusCode int

	Err error
}

func (e *PollError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("poll failed: unexpected status %d", e.StatusCode)
	default:
		if e.Err == nil {
			return fmt.Sprintf("poll failed: %s", e.Kind)
		}
		return fmt.Sprintf("poll failed (%s): %v", e.Kind, e.Err)
	}
}

func (e *PollError) Unwrap() error {
	return e.Err
}
