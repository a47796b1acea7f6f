package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"dynwatch/internal/daemonctl"
)

const statusLabelWidth = 18

// severityStyle maps daemonctl severities to a tag and color. Unknown
// severities render as info.
var severityStyle = map[string]struct {
	tag   string
	color text.Colors
}{
	"ok":    {"OK", text.Colors{text.FgGreen}},
	"info":  {"INFO", text.Colors{text.FgBlue}},
	"warn":  {"WARN", text.Colors{text.FgYellow}},
	"error": {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

func normalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	if s == "warning" {
		s = "warn"
	}
	if _, ok := severityStyle[s]; !ok {
		return "info"
	}
	return s
}

func renderStatusLine(line daemonctl.StatusLine, colorize bool) string {
	style := severityStyle[normalizeSeverity(line.Severity)]
	tag := fmt.Sprintf("%-7s", "["+style.tag+"]")
	if colorize {
		tag = style.color.Sprint(tag)
	}
	out := fmt.Sprintf("  %-*s %s", statusLabelWidth, line.Label+":", tag)
	if line.Detail != "" {
		out += " " + line.Detail
	}
	return strings.TrimRight(out, " ")
}

// writeStatusSection prints a titled block of status lines.
func writeStatusSection(w io.Writer, title string, lines []daemonctl.StatusLine, colorize bool) {
	heading := strings.TrimSpace(title)
	if colorize {
		heading = text.Colors{text.FgCyan, text.Bold}.Sprint(heading)
	}
	fmt.Fprintln(w, heading)
	for _, line := range lines {
		fmt.Fprintln(w, renderStatusLine(line, colorize))
	}
}

// worstSeverity returns the most severe level among lines.
func worstSeverity(lines []daemonctl.StatusLine) string {
	rank := map[string]int{"info": 0, "ok": 0, "warn": 1, "error": 2}
	worst := "ok"
	for _, line := range lines {
		s := normalizeSeverity(line.Severity)
		if rank[s] > rank[worst] {
			worst = s
		}
	}
	return worst
}
