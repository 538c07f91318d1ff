package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/server"
	"github.com/muurk/wsecho/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze capture.jsonl...",
	Short: "Summarize frame capture files",
	Long: `Read capture files written with --analysis-dir and print one row per
connection: frame and byte counts in each direction, the inbound frame
types, and how many data frames were not echoed or echoed differently.

The command fails when any echo differs from the frame it answers.`,
	Example: `  wsecho-server analyze ./captures/capture-20251121.jsonl`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var records []server.FrameCapture
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		recs, err := server.ReadCaptures(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, recs...)
	}

	summaries := server.Summarize(records)
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Table([]string{"CONNECTION", "REMOTE", "DURATION", "IN", "OUT", "TYPES", "UNECHOED", "MISMATCHED"},
		summaryRows(summaries))

	mismatched := 0
	for _, s := range summaries {
		mismatched += s.Mismatched
	}
	if mismatched > 0 {
		return fmt.Errorf("%d echoes differ from the frames they answer", mismatched)
	}
	return nil
}

func summaryRows(summaries []*server.ConnSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ConnID,
			s.RemoteAddr,
			s.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d/%dB", s.FramesIn, s.BytesIn),
			fmt.Sprintf("%d/%dB", s.FramesOut, s.BytesOut),
			opcodeCounts(s.Opcodes),
			strconv.Itoa(s.Unechoed),
			strconv.Itoa(s.Mismatched),
		})
	}
	return rows
}

// opcodeCounts renders e.g. "ping:1,text:4".
func opcodeCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, m[k])
	}
	return strings.Join(parts, ",")
}
