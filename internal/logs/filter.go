package logs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dynwatch/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	Subscriber string
	Creator    int64
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

// Empty reports whether the filter lets every line through.
func (f Filter) Empty() bool {
	return f.Subscriber == "" && f.Creator == 0 && f.MinLevel == ""
}

// Match reports whether line passes the filter. JSON lines are matched on
// their fields; console lines on the "[subscriber/creator]" prefix and the
// level column.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			return f.matchRecord(record)
		}
	}
	return f.matchConsole(trimmed)
}

func (f Filter) matchRecord(record map[string]any) bool {
	if f.MinLevel != "" {
		level, _ := record["level"].(string)
		if !f.levelAllowed(level) {
			return false
		}
	}
	if f.Subscriber != "" {
		if sub, _ := record[logging.FieldSubscriber].(string); sub != f.Subscriber {
			return false
		}
	}
	if f.Creator != 0 {
		switch v := record[logging.FieldCreator].(type) {
		case float64:
			if int64(v) != f.Creator {
				return false
			}
		case string:
			if v != strconv.FormatInt(f.Creator, 10) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (f Filter) matchConsole(line string) bool {
	fields := strings.Fields(line)
	if f.MinLevel != "" {
		if len(fields) < 2 || !f.levelAllowed(fields[1]) {
			return false
		}
	}
	if f.Subscriber != "" || f.Creator != 0 {
		var want string
		switch {
		case f.Subscriber != "" && f.Creator != 0:
			want = fmt.Sprintf("[%s/%d]", f.Subscriber, f.Creator)
		case f.Subscriber != "":
			want = "[" + f.Subscriber + "/"
		default:
			want = fmt.Sprintf("/%d]", f.Creator)
		}
		if !strings.Contains(line, want) {
			return false
		}
	}
	return true
}

func (f Filter) levelAllowed(level string) bool {
	min, ok := levelRank[strings.ToLower(f.MinLevel)]
	if !ok {
		return true
	}
	got, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	return ok && got >= min
}

// Apply returns the lines that pass f.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := lines[:0:0]
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}
