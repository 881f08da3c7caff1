package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a compression request failed
type ErrorKind int

const (
	// InvalidInput covers a missing or malformed URL, an unreachable resource and data that is not an image
	InvalidInput ErrorKind = iota + 1
	// UpstreamFailure covers transient fetch faults such as 5xx responses and timeouts
	UpstreamFailure
	// ProcessingFailure covers transform and encode failures after a successful decode
	ProcessingFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case UpstreamFailure:
		return "UpstreamFailure"
	case ProcessingFailure:
		return "ProcessingFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by CoreService for every failed request.
// Message is safe to show to clients; Err carries the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a CoreService error; unclassified errors count as ProcessingFailure
func KindOf(err error) ErrorKind {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}
	return ProcessingFailure
}
