package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Exchange is one message sent by the client and the echo it got back.
type Exchange struct {
	Seq      int
	Kind     string // "text", "binary" or "ping"
	Sent     []byte
	Received []byte
	RTT      time.Duration
	Err      error
}

// Matched reports whether the echo carried the bytes that were sent.
func (e Exchange) Matched() bool {
	return e.Err == nil && string(e.Sent) == string(e.Received)
}

// Printer writes client output, styled on a terminal and plain otherwise.
type Printer struct {
	w      io.Writer
	styled bool
	width  int
}

// NewPrinter returns a Printer that styles output only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		styled: IsTerminal(w),
		width:  GetTerminalWidth(w),
	}
}

// NewPlainPrinter returns a Printer that never styles.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, width: MaxContentWidth}
}

// Styled reports whether output is styled.
func (p *Printer) Styled() bool {
	return p.styled
}

// Header prints h.
func (p *Printer) Header(h *Header) {
	if p.styled {
		p.println(h.SetWidth(p.width).Render())
		return
	}
	p.println(h.Plain())
}

// Result prints r.
func (p *Printer) Result(r *Result) {
	if p.styled {
		p.println(r.SetWidth(p.width).Render())
		return
	}
	p.println(r.Plain())
}

// Exchange prints the sent and received sides of e.
func (p *Printer) Exchange(e Exchange) {
	if !p.styled {
		p.println(fmt.Sprintf("#%d sent %s %d bytes: %s", e.Seq, e.Kind, len(e.Sent), Preview(string(e.Sent))))
		switch {
		case e.Err != nil:
			p.println(fmt.Sprintf("#%d error: %v", e.Seq, e.Err))
		case e.Matched():
			p.println(fmt.Sprintf("#%d echo %s %d bytes in %s", e.Seq, e.Kind, len(e.Received), e.RTT))
		default:
			p.println(fmt.Sprintf("#%d mismatch %d bytes in %s: %s", e.Seq, len(e.Received), e.RTT, Preview(string(e.Received))))
		}
		return
	}

	sent := fmt.Sprintf("  %s %s %s", SentStyle.Render(fmt.Sprintf("%s #%d", SentMarker, e.Seq)),
		Preview(string(e.Sent)), NoteStyle.Render(fmt.Sprintf("(%s, %d B)", e.Kind, len(e.Sent))))
	p.println(sent)

	var recv string
	switch {
	case e.Err != nil:
		recv = MismatchStyle.Render(fmt.Sprintf("  %s #%d %s %v", ReceivedMarker, e.Seq, FailureMarker, e.Err))
	case e.Matched():
		recv = fmt.Sprintf("  %s %s", EchoStyle.Render(fmt.Sprintf("%s #%d %s", ReceivedMarker, e.Seq, SuccessMarker)),
			NoteStyle.Render(e.RTT.Round(time.Microsecond).String()))
	default:
		recv = fmt.Sprintf("  %s %s", MismatchStyle.Render(fmt.Sprintf("%s #%d %s", ReceivedMarker, e.Seq, FailureMarker)),
			Preview(string(e.Received)))
	}
	p.println(recv)
}

// Table prints rows under headers with aligned columns.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	format := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	head := format(headers)
	if p.styled {
		head = TableHeaderStyle.Render(head)
	}
	p.println(head)
	for _, row := range rows {
		p.println(format(row))
	}
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}
