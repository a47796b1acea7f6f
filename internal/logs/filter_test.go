package logs_test

import (
	"testing"

	"dynwatch/internal/logs"
)

func TestFilterJSONLines(t *testing.T) {
	lines := []string{
		`{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"cycle","component":"scheduler"}`,
		`{"ts":"2026-01-01T00:00:01Z","level":"info","msg":"dispatched","subscriber":"g1","creator":42}`,
		`{"ts":"2026-01-01T00:00:02Z","level":"warn","msg":"fetch failed","subscriber":"g2","creator":42}`,
		`{"ts":"2026-01-01T00:00:03Z","level":"error","msg":"persist failed","subscriber":"g1","creator":7}`,
	}

	cases := []struct {
		name   string
		filter logs.Filter
		want   int
	}{
		{"empty", logs.Filter{}, 4},
		{"subscriber", logs.Filter{Subscriber: "g1"}, 2},
		{"creator", logs.Filter{Creator: 42}, 2},
		{"both", logs.Filter{Subscriber: "g1", Creator: 42}, 1},
		{"level", logs.Filter{MinLevel: "warn"}, 2},
		{"level and subscriber", logs.Filter{MinLevel: "warn", Subscriber: "g1"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Apply(lines); len(got) != tc.want {
				t.Fatalf("got %d lines, want %d: %v", len(got), tc.want, got)
			}
		})
	}
}

func TestFilterConsoleLines(t *testing.T) {
	lines := []string{
		"2026-01-01T00:00:00Z INFO scheduler: cycle finished notified=1",
		"2026-01-01T00:00:01Z INFO dispatch [g1/42]: dynamic delivered item_id=9",
		"2026-01-01T00:00:02Z WARN scheduler [g2/42]: feed fetch failed",
	}

	if got := (logs.Filter{Subscriber: "g1"}).Apply(lines); len(got) != 1 {
		t.Fatalf("subscriber filter: %v", got)
	}
	if got := (logs.Filter{Creator: 42}).Apply(lines); len(got) != 2 {
		t.Fatalf("creator filter: %v", got)
	}
	if got := (logs.Filter{MinLevel: "warn"}).Apply(lines); len(got) != 1 {
		t.Fatalf("level filter: %v", got)
	}
}
