package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - echoes, success
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, mismatches
	WarningColor = lipgloss.Color("#FFA500") // Orange - control frames
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
	PreviewLimit     = 48  // Payload characters shown per exchange
)

var (
	// HeaderTitleStyle is for the command title (e.g., "ECHO SESSION")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderCommandStyle is for the command path (e.g., "wsecho-client send")
	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamKeyStyle is for parameter keys (e.g., "URL:")
	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2).
				Width(16)

	// HeaderParamValueStyle is for parameter values
	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// SentStyle is for the outbound side of an exchange
	SentStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// EchoStyle is for a matching echo
	EchoStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// MismatchStyle is for an echo that differs from what was sent
	MismatchStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// NoteStyle is for timings and byte counts
	NoteStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// SuccessTitleStyle is for the success result title
	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	// ErrorTitleStyle is for the error result title
	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// ErrorMessageStyle is for error message text
	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	// ResultKeyStyle is for result detail keys
	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	// ResultValueStyle is for result detail values
	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// TableHeaderStyle is for column headings
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	// TroubleshootingItemStyle is for troubleshooting bullet points
	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)
)

// Markers
const (
	SentMarker     = "→"
	ReceivedMarker = "←"
	SuccessMarker  = "✓"
	FailureMarker  = "✗"
)

// IsTerminal reports whether w is a terminal. Anything that is not an
// *os.File is treated as a pipe.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// GetTerminalWidth returns the width of w clamped to the layout limits.
func GetTerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return MaxContentWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat(char, width))
}

// Preview shortens s to PreviewLimit runes and replaces control characters
// so a payload fits on one line.
func Preview(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == PreviewLimit {
			b.WriteString("…")
			break
		}
		if r < 0x20 || r == 0x7f {
			r = '.'
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
