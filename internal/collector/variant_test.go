package collector

import (
	"testing"
)

func TestParseFactorioPlayers(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    uint16
		wantErr bool
	}{
		{name: "zero", raw: "Online player (0):", want: 0},
		{name: "forty two", raw: "Online player (42):", want: 42},
		{name: "with player lines", raw: "Online players (2):\n  alice (online)\n  bob (online)", want: 2},
		{name: "first group wins", raw: "foo(1) bar(2)", want: 1},
		{name: "max", raw: "Online players (65535):", want: 65535},
		{name: "no parenthesis", raw: "Online players: 3", wantErr: true},
		{name: "non numeric", raw: "Online players (three):", wantErr: true},
		{name: "empty group", raw: "Online players ():", wantErr: true},
		{name: "unclosed takes the rest", raw: "Online players (3", want: 3},
		{name: "unclosed non numeric", raw: "Online players (3 online", wantErr: true},
		{name: "negative", raw: "Online players (-1):", wantErr: true},
		{name: "overflow", raw: "Online players (65536):", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFactorioPlayers(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got: %d, want: %d", got, tc.want)
			}
		})
	}
}

func TestParseSourcePlayers(t *testing.T) {
	status := `hostname: Uncletopia | Chicago
version : 8622567/24 8622567 secure
udp/ip  : 1.2.3.4:27015
map     : pl_upward at: 0 x, 0 y, 0 z
players : 18 humans, 0 bots (24 max)
edicts  : 1203 used of 2048 max
`
	tests := []struct {
		name    string
		raw     string
		want    uint16
		wantErr bool
	}{
		{name: "tf2 status", raw: status, want: 18},
		{name: "legacy status", raw: "players : 3 (16 max)", want: 3},
		{name: "missing line", raw: "hostname: test", wantErr: true},
		{name: "longer key ignored", raw: "sv_maxplayers : 24\nplayers : 5 humans, 0 bots (24 max)", want: 5},
		{name: "only longer key", raw: "maxplayers : 24", wantErr: true},
		{name: "overflow", raw: "players : 70000 humans", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSourcePlayers(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got: %d, want: %d", got, tc.want)
			}
		})
	}
}

func TestMetricsCollectError_IncludesRaw(t *testing.T) {
	raw := "Online players (x):"
	_, parseErr := ParseFactorioPlayers(raw)
	err := &MetricsCollectError{Game: "factorio", Raw: raw, Err: parseErr}
	want := "failed to parse any factorio player count from response: Online players (x):"
	if err.Error() != want {
		t.Errorf("got: %q, want: %q", err.Error(), want)
	}
}
