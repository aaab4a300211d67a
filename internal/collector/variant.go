package collector

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Variant describes how one game exposes its player count over RCON.
type Variant struct {
	Name        string
	Description string
	Command     string
	Parse       func(raw string) (uint16, error)
}

// Factorio replies to its command with e.g. "Online players (3):" followed by
// one line per player.
var Factorio = Variant{
	Name:        "factorio",
	Description: "Collect metrics from Factorio",
	Command:     "/players online count",
	Parse:       ParseFactorioPlayers,
}

// Source covers Source engine servers (TF2, CS, ...) whose status reply
// contains a line like "players : 3 humans, 0 bots (24 max)".
var Source = Variant{
	Name:        "source",
	Description: "Collect metrics from a Source engine server",
	Command:     "status",
	Parse:       ParseSourcePlayers,
}

var variants = map[string]Variant{
	Factorio.Name: Factorio,
	Source.Name:   Source,
}

// Lookup returns the variant registered under name.
func Lookup(name string) (Variant, bool) {
	v, ok := variants[name]
	return v, ok
}

// Names returns the registered variant names in sorted order.
func Names() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFactorioPlayers extracts the integer between the first "(" and the
// next ")", or the end of the reply when there is no ")". Only the first
// parenthesized group is considered.
func ParseFactorioPlayers(raw string) (uint16, error) {
	_, after, ok := strings.Cut(raw, "(")
	if !ok {
		return 0, errNoOpenParen
	}
	inner, _, _ := strings.Cut(after, ")")
	return parseCount(inner)
}

var sourcePlayersRx = regexp.MustCompile(`(?m)^players\s*:\s*(\d+)`)

// ParseSourcePlayers extracts the human player count from a status reply.
func ParseSourcePlayers(raw string) (uint16, error) {
	m := sourcePlayersRx.FindStringSubmatch(raw)
	if m == nil {
		return 0, errNoPlayers
	}
	return parseCount(m[1])
}

func parseCount(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
