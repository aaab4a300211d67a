// Package metrics provides OpenTelemetry self-telemetry for gamemetrics.
package metrics // revive:disable-line:var-naming

import (
	"context"
	"time"
)

// RCON operation attribute values.
const (
	OpConnect      = "connect"
	OpAuthenticate = "authenticate"
	OpExecute      = "execute"
)

// RCONRecorder records RCON round-trip metrics (count and latency).
// Implementations are used by the RCON session and the exec client.
type RCONRecorder interface {
	RecordRequest(ctx context.Context, op string, errType string, duration time.Duration)
}

// PlayerCountRecorder records the players_online_last gauge (last collected count per game).
type PlayerCountRecorder interface {
	RecordPlayersOnline(ctx context.Context, game string, count int64)
}
