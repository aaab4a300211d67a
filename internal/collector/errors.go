package collector

import (
	"errors"
	"fmt"
)

// ErrAuthenticationRejected means the server is reachable but refused the password.
var ErrAuthenticationRejected = errors.New("rcon authentication rejected")

var (
	errNoOpenParen = errors.New("no opening parenthesis")
	errNoPlayers   = errors.New("no players line")
)

// MetricsCollectError is a reply that was received but could not be parsed
// into a metric. Raw holds the reply verbatim.
type MetricsCollectError struct {
	Game string
	Raw  string
	Err  error
}

func (e *MetricsCollectError) Error() string {
	return fmt.Sprintf("failed to parse any %s player count from response: %s", e.Game, e.Raw)
}

func (e *MetricsCollectError) Unwrap() error {
	return e.Err
}
