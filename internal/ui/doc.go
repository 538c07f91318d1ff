// Package ui renders wsecho-client output.
//
// Output is styled with Lipgloss when stdout is a terminal and falls back to
// plain line-oriented text otherwise, so piping the client into other tools
// yields stable output with no escape codes.
//
// # Components
//
//   - Header: command banner showing the target and options
//   - Exchange: one sent message and its echo, with round-trip time
//   - Result: success or failure summary box
//   - Table: aligned columns, used for discovered servers
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.Header(ui.NewHeader("Echo session", "wsecho-client send",
//	    ui.Param{Key: "URL", Value: url}))
//	p.Exchange(ui.Exchange{Seq: 1, Kind: "text", Sent: msg, Received: echo, RTT: rtt})
//	p.Result(ui.NewSuccessResult("1 of 1 messages echoed"))
//
// # Logging Integration
//
// zap logging stays silent unless WSECHO_LOG_LEVEL is set, so the curated
// output here is not interleaved with log lines.
package ui
