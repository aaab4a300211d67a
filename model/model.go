// Package model provides the metrics snapshot produced by a collection and its
// Prometheus text exposition.
package model

import (
	"strconv"
	"strings"
)

// PlayersOnlineMetric is the name of the exposed gauge.
const PlayersOnlineMetric = "players_online"

// Snapshot is the result of one successful collection. It is never mutated
// after construction.
type Snapshot struct {
	PlayersOnlineCount uint16 `json:"players_online_count"`
}

// NewSnapshot returns a snapshot holding count.
func NewSnapshot(count uint16) Snapshot {
	return Snapshot{PlayersOnlineCount: count}
}

// Exposition renders the snapshot in the Prometheus text format:
//
//	# TYPE players_online gauge
//	players_online <count>
//
// The body carries no trailing newline.
func (s Snapshot) Exposition() string {
	var b strings.Builder
	b.WriteString("# TYPE ")
	b.WriteString(PlayersOnlineMetric)
	b.WriteString(" gauge\n")
	b.WriteString(PlayersOnlineMetric)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(s.PlayersOnlineCount), 10))
	return b.String()
}
