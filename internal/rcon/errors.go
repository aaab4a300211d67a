package rcon

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation requires an open connection.
var ErrNotConnected = errors.New("rcon: not connected")

// ErrNotAuthenticated is returned by Execute before a successful Authenticate.
var ErrNotAuthenticated = errors.New("rcon: not authenticated")

// ConnectionError is a transport-level failure to establish or use the socket.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rcon %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError is a reply that does not follow the RCON framing rules.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "rcon protocol: " + e.Reason
}
