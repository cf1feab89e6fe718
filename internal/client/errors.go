package client

import "fmt"

// NotReadyError is returned when a capability operation is attempted
// before the client has reached StateReady.
type NotReadyError struct {
	State State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("client: not ready (state=%s)", e.State)
}

// InitializeFailedError wraps the underlying cause of a failed handshake.
type InitializeFailedError struct {
	Err error
}

func (e *InitializeFailedError) Error() string {
	return fmt.Sprintf("client: initialize failed: %v", e.Err)
}

func (e *InitializeFailedError) Unwrap() error { return e.Err }

// UnsupportedMethodError records that the server answered a capability
// listing with "method not found" (-32601); callers see an empty list
// rather than an error, but this is logged for diagnostics.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("client: server does not support method %q", e.Method)
}
