package models

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a ledger payload that does not match its schema.
var ErrMalformedResponse = errors.New("malformed response")

// ValidationError reports missing or invalid local input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError reports a transport failure, timeout, unexpected status or an
// unreadable payload.
type NetworkError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: ledger returned status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerRejection reports a business-rule failure returned by the ledger.
type ServerRejection struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("%s: rejected by ledger: %s", e.Op, e.Message)
}

// UserMessage converts an action failure into the message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	var sr *ServerRejection
	var ne *NetworkError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &sr):
		return sr.Message
	case errors.As(err, &ne):
		if ne.Timeout {
			return "The ledger did not respond in time, please try again"
		}
		return "The ledger is unreachable: " + ne.Error()
	default:
		return err.Error()
	}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRejection reports whether err is a ServerRejection.
func IsRejection(err error) bool {
	var sr *ServerRejection
	return errors.As(err, &sr)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
