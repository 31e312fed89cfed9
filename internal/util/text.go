// Package util holds terminal text helpers shared by the preview sink and
// the CLI.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// TruncateANSI cuts s to maxWidth visible columns, ending in an ellipsis
// when anything was dropped. Escape sequences are preserved so styled text
// stays well formed. A non-positive maxWidth disables truncation.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 0 || lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return ellipsis
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// TruncateLines applies TruncateANSI to every line of s.
func TruncateLines(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = TruncateANSI(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}
