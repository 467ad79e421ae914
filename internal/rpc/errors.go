package rpc

import "errors"

// Error codes carried in the error envelope. The gateway maps them back to
// HTTP statuses; authd handlers pick them when converting domain errors.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeConflict           = "conflict"
	CodeValidation         = "validation"
	CodeNoHandler          = "no_handler"
	CodeInternal           = "internal"
)

var (
	// ErrTimeout is returned by Send when no correlated response arrives
	// within the caller's window.
	ErrTimeout = errors.New("rpc: timeout waiting for response")

	// ErrClosed rejects pending and future calls after the transport failed
	// or the client was closed.
	ErrClosed = errors.New("rpc: connection closed")

	// ErrNotConnected is returned by Send when the initial connect never
	// succeeded.
	ErrNotConnected = errors.New("rpc: not connected")
)

// Error is a dispatch failure with a stable code. The server serializes it
// into the response envelope; the client rebuilds it so callers can branch on
// Code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a coded dispatch error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
