package storefront

import (
	"errors"
	"fmt"
)

// StatusCode represents the category of a command rejection.
type StatusCode int

const (
	StatusInvalidArgument StatusCode = iota
	StatusFailedPrecondition
	StatusUnauthenticated
	StatusPermissionDenied
	StatusNotFound
	StatusAborted
	StatusUnavailable
)

func (s StatusCode) String() string {
	switch s {
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case StatusFailedPrecondition:
		return "FAILED_PRECONDITION"
	case StatusUnauthenticated:
		return "UNAUTHENTICATED"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusAborted:
		return "ABORTED"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Reason identifies why a command was rejected, independent of the message text.
type Reason string

const (
	ReasonInvalidArgument   Reason = "InvalidArgument"
	ReasonUnauthenticated   Reason = "Unauthenticated"
	ReasonUnauthorized      Reason = "Unauthorized"
	ReasonProductNotFound   Reason = "ProductNotFound"
	ReasonInsufficientStock Reason = "InsufficientStock"
	ReasonOutOfStock        Reason = "OutOfStock"
	ReasonEmptyCart         Reason = "EmptyCart"
	ReasonMissingField      Reason = "MissingField"
	ReasonOrderNotFound     Reason = "OrderNotFound"
	ReasonUserNotFound      Reason = "UserNotFound"
	ReasonInvalidTransition Reason = "InvalidTransition"
	ReasonVersionConflict   Reason = "VersionConflict"
	ReasonRemoteIO          Reason = "RemoteIO"
)

// Code returns the status category a reason is reported under.
func (r Reason) Code() StatusCode {
	switch r {
	case ReasonUnauthenticated:
		return StatusUnauthenticated
	case ReasonUnauthorized:
		return StatusPermissionDenied
	case ReasonProductNotFound, ReasonOrderNotFound, ReasonUserNotFound:
		return StatusNotFound
	case ReasonInsufficientStock, ReasonOutOfStock, ReasonEmptyCart, ReasonInvalidTransition:
		return StatusFailedPrecondition
	case ReasonVersionConflict:
		return StatusAborted
	case ReasonRemoteIO:
		return StatusUnavailable
	default:
		return StatusInvalidArgument
	}
}

// CommandError is returned when a command is rejected by business logic
// or cannot be completed against the remote store.
type CommandError struct {
	Code    StatusCode
	Reason  Reason
	Message string
	Cause   error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CommandError with the same Reason.
// This lets callers write errors.Is(err, storefront.ErrOutOfStock).
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// Sentinels for errors.Is matching. Never return these directly; use the
// constructors so the message carries context.
var (
	ErrInvalidArgument   = &CommandError{Code: StatusInvalidArgument, Reason: ReasonInvalidArgument, Message: "invalid argument"}
	ErrUnauthenticated   = &CommandError{Code: StatusUnauthenticated, Reason: ReasonUnauthenticated, Message: "not signed in"}
	ErrUnauthorized      = &CommandError{Code: StatusPermissionDenied, Reason: ReasonUnauthorized, Message: "not authorized"}
	ErrProductNotFound   = &CommandError{Code: StatusNotFound, Reason: ReasonProductNotFound, Message: "product not found"}
	ErrInsufficientStock = &CommandError{Code: StatusFailedPrecondition, Reason: ReasonInsufficientStock, Message: "insufficient stock"}
	ErrOutOfStock        = &CommandError{Code: StatusFailedPrecondition, Reason: ReasonOutOfStock, Message: "out of stock"}
	ErrEmptyCart         = &CommandError{Code: StatusFailedPrecondition, Reason: ReasonEmptyCart, Message: "cart is empty"}
	ErrMissingField      = &CommandError{Code: StatusInvalidArgument, Reason: ReasonMissingField, Message: "missing field"}
	ErrOrderNotFound     = &CommandError{Code: StatusNotFound, Reason: ReasonOrderNotFound, Message: "order not found"}
	ErrUserNotFound      = &CommandError{Code: StatusNotFound, Reason: ReasonUserNotFound, Message: "user not found"}
	ErrInvalidTransition = &CommandError{Code: StatusFailedPrecondition, Reason: ReasonInvalidTransition, Message: "invalid status transition"}
	ErrVersionConflict   = &CommandError{Code: StatusAborted, Reason: ReasonVersionConflict, Message: "version conflict"}
	ErrRemoteIO          = &CommandError{Code: StatusUnavailable, Reason: ReasonRemoteIO, Message: "remote io failure"}
)

// NewError creates a CommandError for reason with the given message.
func NewError(reason Reason, message string) *CommandError {
	return &CommandError{Code: reason.Code(), Reason: reason, Message: message}
}

// NewErrorf creates a CommandError with a formatted message.
func NewErrorf(reason Reason, format string, args ...interface{}) *CommandError {
	return NewError(reason, fmt.Sprintf(format, args...))
}

// NewInvalidArgument creates a CommandError for invalid input.
func NewInvalidArgument(message string) *CommandError {
	return NewError(ReasonInvalidArgument, message)
}

// NewFailedPreconditionf creates an InvalidTransition CommandError with a formatted message.
func NewFailedPreconditionf(format string, args ...interface{}) *CommandError {
	return NewErrorf(ReasonInvalidTransition, format, args...)
}

// RemoteIOError wraps a transport, status or decoding failure from the remote store.
func RemoteIOError(op string, cause error) *CommandError {
	return &CommandError{Code: StatusUnavailable, Reason: ReasonRemoteIO, Message: op, Cause: cause}
}

// AsCommandError extracts a CommandError from an error chain.
func AsCommandError(err error) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return nil
}

// ReasonOf returns the Reason of the first CommandError in err's chain, or "".
func ReasonOf(err error) Reason {
	if cmdErr := AsCommandError(err); cmdErr != nil {
		return cmdErr.Reason
	}
	return ""
}

// IsRetryable reports whether retrying the whole operation may succeed.
func IsRetryable(err error) bool {
	switch ReasonOf(err) {
	case ReasonRemoteIO, ReasonVersionConflict:
		return true
	default:
		return false
	}
}
