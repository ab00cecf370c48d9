package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("not connected to signaling server")
	ErrClosed       = errors.New("signaling client closed")
	ErrServerClosed = errors.New("signaling server closed the connection")
	ErrEmptyRoom    = errors.New("room name is empty")
	ErrTimeout      = errors.New("timeout")
)

// Error records the operation that failed against the signaling server.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
