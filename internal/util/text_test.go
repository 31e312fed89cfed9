package util

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		expected string
	}{
		{"fits", "frame", 10, "frame"},
		{"exact width", "frame", 5, "frame"},
		{"truncated", "render stack", 8, "render …"},
		{"width one", "render", 1, "…"},
		{"zero disables", "render", 0, "render"},
		{"negative disables", "render", -4, "render"},
		{"empty", "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.maxWidth); got != tt.expected {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.expected)
			}
		})
	}
}

func TestTruncateANSI_Styled(t *testing.T) {
	styled := "\x1b[31m" + strings.Repeat("▀", 20) + "\x1b[0m"

	got := TruncateANSI(styled, 6)
	if w := lipgloss.Width(got); w != 6 {
		t.Errorf("visible width = %d, want 6 (%q)", w, got)
	}
	if !strings.HasPrefix(got, "\x1b[31m") {
		t.Errorf("escape sequence dropped: %q", got)
	}
	if !strings.Contains(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	in := "abcdef\nab\nabcdefgh"
	got := TruncateLines(in, 4)
	want := "abc…\nab\nabc…"
	if got != want {
		t.Errorf("TruncateLines = %q, want %q", got, want)
	}
	if TruncateLines(in, 0) != in {
		t.Error("zero width should leave input unchanged")
	}
}
