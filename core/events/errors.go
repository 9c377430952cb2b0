package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/dispatchmap/core/model"
)

// ErrorKind classifies command failures.
type ErrorKind int

const (
	// ErrTransport means the backend could not be reached.
	ErrTransport ErrorKind = iota + 1
	// ErrRejected means the backend answered with a failure body.
	ErrRejected
	// ErrUnexpected covers malformed responses and anything else.
	ErrUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransport:
		return "transport"
	case ErrRejected:
		return "rejected"
	case ErrUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "transport":
		*k = ErrTransport
	case "rejected":
		*k = ErrRejected
	default:
		*k = ErrUnexpected
	}
	return nil
}

// CommandError is the typed failure of a gateway command.
type CommandError struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	// Message is the human readable reason from the failure body.
	Message string `json:"message,omitempty"`
	// Status is the optional machine readable trip status, e.g. "cancelled".
	Status string   `json:"status,omitempty"`
	TripID model.ID `json:"trip_id,omitempty"`
	Cause  string   `json:"cause,omitempty"`
}

func (e *CommandError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	case e.Cause != "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Cause)
	default:
		return e.Kind.String() + " error"
	}
}

// Cancelled reports whether the backend rejected the command because the
// previous trip was cancelled.
func (e *CommandError) Cancelled() bool {
	return e != nil && e.Kind == ErrRejected && strings.EqualFold(e.Status, "cancelled")
}

// TransportError wraps a network failure.
func TransportError(err error) *CommandError {
	return &CommandError{Kind: ErrTransport, Cause: errString(err)}
}

// UnexpectedError wraps any failure that is neither transport nor rejection.
func UnexpectedError(err error) *CommandError {
	return &CommandError{Kind: ErrUnexpected, Cause: errString(err)}
}

// AsCommandError returns err as a *CommandError, classifying foreign errors
// as unexpected. A nil error yields nil.
func AsCommandError(err error) *CommandError {
	if err == nil {
		return nil
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	return UnexpectedError(err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
