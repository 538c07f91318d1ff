package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/ui"
)

// sendOptions configures a send session
type sendOptions struct {
	URL          string
	Binary       bool
	Count        int
	Subprotocols []string
	Timeout      time.Duration
	Insecure     bool
}

// sendReport summarizes a finished session
type sendReport struct {
	Sent        int
	Matched     int
	Subprotocol string
	CloseCode   int
	Elapsed     time.Duration
}

var (
	sendOpts     sendOptions
	sendInstance string
)

var sendCmd = &cobra.Command{
	Use:   "send [flags] message...",
	Short: "Send messages and verify the echoes",
	Long: `Connect to a wsecho server, send each message and wait for its echo.

Every message is sent --count times. The session ends with a normal close
handshake. The command fails if any echo is missing or differs from what
was sent.

Without --url the server is located over mDNS by --instance.`,
	Example: `  # Two text messages
  wsecho-client send --url ws://localhost:8080/ hello world

  # Binary payload repeated 100 times over TLS with a self-signed cert
  wsecho-client send --url wss://localhost:8443/ --binary --count 100 --insecure ping

  # Find the server by its mDNS instance name
  wsecho-client send --instance lab-echo hello`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendOpts.URL, "url", "u", "", "Server URL, e.g. ws://localhost:8080/")
	sendCmd.Flags().StringVar(&sendInstance, "instance", "wsecho", "mDNS instance to connect to when --url is not set")
	sendCmd.Flags().BoolVar(&sendOpts.Binary, "binary", false, "Send binary frames instead of text")
	sendCmd.Flags().IntVarP(&sendOpts.Count, "count", "n", 1, "Times to send each message")
	sendCmd.Flags().StringSliceVar(&sendOpts.Subprotocols, "subprotocol", nil, "Subprotocols to offer")
	sendCmd.Flags().DurationVar(&sendOpts.Timeout, "timeout", 5*time.Second, "Timeout for the handshake and each echo")
	sendCmd.Flags().BoolVar(&sendOpts.Insecure, "insecure", false, "Skip TLS certificate verification")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := ui.NewPrinter(cmd.OutOrStdout())

	opts := sendOpts
	if opts.URL == "" {
		scanner := discovery.NewScanner()
		svc, err := scanner.Find(ctx, sendInstance)
		if err != nil {
			p.Result(ui.NewFailureResult("No server to send to", err,
				"Pass --url to connect directly",
				"Check that the server runs with --discovery"))
			return err
		}
		opts.URL = svc.URL()
	}

	kind := "text"
	if opts.Binary {
		kind = "binary"
	}
	p.Header(ui.NewHeader("Echo session", "wsecho-client send",
		ui.Param{Key: "URL", Value: opts.URL},
		ui.Param{Key: "Frames", Value: kind},
		ui.Param{Key: "Messages", Value: strconv.Itoa(len(args) * max(opts.Count, 1))},
	))

	messages := make([][]byte, len(args))
	for i, a := range args {
		messages[i] = []byte(a)
	}

	report, err := sendMessages(ctx, opts, messages, p.Exchange)
	title := fmt.Sprintf("%d of %d messages echoed", report.Matched, report.Sent)
	if err == nil && report.Matched != report.Sent {
		err = fmt.Errorf("%d echoes did not match", report.Sent-report.Matched)
	}
	if err != nil {
		p.Result(ui.NewFailureResult(title, err,
			"Is the server running and reachable?",
			"Use --insecure for self-signed certificates"))
		return err
	}

	result := ui.NewSuccessResult(title)
	result.AddDetail("Elapsed", report.Elapsed.Round(time.Millisecond).String())
	if report.Subprotocol != "" {
		result.AddDetail("Subprotocol", report.Subprotocol)
	}
	result.AddDetail("Close code", strconv.Itoa(report.CloseCode))
	p.Result(result)
	return nil
}

// sendMessages dials opts.URL, sends each message opts.Count times and
// reports every exchange to onExchange. It stops at the first transport
// error; mismatched echoes are reported and counted but do not stop it.
func sendMessages(ctx context.Context, opts sendOptions, messages [][]byte, onExchange func(ui.Exchange)) (report sendReport, err error) {
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.Timeout,
		Subprotocols:     opts.Subprotocols,
	}
	if opts.Insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		if resp != nil {
			return report, fmt.Errorf("handshake rejected with %s: %w", resp.Status, err)
		}
		return report, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	report.Subprotocol = conn.Subprotocol()
	logging.Debug("Connected",
		zap.String("url", opts.URL),
		zap.String("subprotocol", report.Subprotocol))

	msgType, kind := websocket.TextMessage, "text"
	if opts.Binary {
		msgType, kind = websocket.BinaryMessage, "binary"
	}

	for _, msg := range messages {
		for range max(opts.Count, 1) {
			report.Sent++
			ex := exchange(conn, msgType, msg, opts.Timeout)
			ex.Seq = report.Sent
			ex.Kind = kind
			if ex.Matched() {
				report.Matched++
			}
			if onExchange != nil {
				onExchange(ex)
			}
			if ex.Err != nil {
				return report, ex.Err
			}
		}
	}

	report.CloseCode, err = closeSession(conn, opts.Timeout)
	return report, err
}

func exchange(conn *websocket.Conn, msgType int, msg []byte, timeout time.Duration) ui.Exchange {
	ex := ui.Exchange{Sent: msg}
	start := time.Now()

	_ = conn.SetWriteDeadline(start.Add(timeout))
	if err := conn.WriteMessage(msgType, msg); err != nil {
		ex.Err = fmt.Errorf("failed to send: %w", err)
		return ex
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	gotType, data, err := conn.ReadMessage()
	ex.RTT = time.Since(start)
	if err != nil {
		ex.Err = fmt.Errorf("failed to read echo: %w", err)
		return ex
	}
	if gotType != msgType {
		ex.Err = fmt.Errorf("echo came back as message type %d, sent %d", gotType, msgType)
	}
	ex.Received = data
	return ex
}

// closeSession runs the close handshake and returns the code the server
// echoed.
func closeSession(conn *websocket.Conn, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return 0, fmt.Errorf("failed to send close: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return ce.Code, nil
		}
		return 0, fmt.Errorf("failed waiting for close: %w", err)
	}
}
