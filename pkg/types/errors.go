package types

import "fmt"

// ErrorKind is the error taxonomy of spec.md §7.
type ErrorKind string

const (
	ErrInvalidRequest       ErrorKind = "InvalidRequest"
	ErrUnauthorized         ErrorKind = "Unauthorized"
	ErrInsufficientResources ErrorKind = "InsufficientResources"
	ErrPredecessorFailed    ErrorKind = "PredecessorFailed"
	ErrTimeout              ErrorKind = "Timeout"
	ErrHandlerFailure       ErrorKind = "HandlerFailure"
	ErrTransportError       ErrorKind = "TransportError"
	ErrInternal             ErrorKind = "Internal"
)

// Error pairs an ErrorKind with a free-form message, the shape carried in a
// reservation's last_error property and in UpdateTicket/UpdateLease replies.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an *Error, the usual constructor used across kernel and
// policy code.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the kind should be retried by the producer
// before surfacing to the caller (spec.md §7: "TransportError is retried up
// to rpc.retries ... before surfacing as Timeout").
func (k ErrorKind) Retryable() bool {
	return k == ErrTransportError
}
