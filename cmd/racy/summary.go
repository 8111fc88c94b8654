package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/montaglue/racy/internal/codec"
	"github.com/montaglue/racy/internal/flame"
	"github.com/montaglue/racy/internal/store"
	"github.com/montaglue/racy/internal/view"
)

var (
	summaryTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	summaryDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var summaryCmd = &cobra.Command{
	Use:   "summary [log, view or snapshot file]",
	Short: "Print a per-thread summary of a reconstructed view",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := codec.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}

		eventLog, err := loadAny(path)
		if err != nil {
			return fmt.Errorf("summary %s: %w", path, err)
		}
		printSummary(os.Stdout, eventLog)
		return nil
	},
}

// loadAny accepts a raw capture log, an exported JSON view or a .racy
// snapshot, chosen by file extension.
func loadAny(path string) (*flame.EventLog, error) {
	switch filepath.Ext(path) {
	case ".json":
		return view.ReadFile(path)
	case ".racy":
		r, err := store.NewReader()
		if err != nil {
			return nil, err
		}
		snap, err := r.Read(path)
		if err != nil {
			return nil, err
		}
		log.Debugf("snapshot %s created at %s", snap.SnapshotID,
			time.Unix(0, snap.CreatedAt).UTC().Format(time.RFC3339))
		return snap.Log, nil
	default:
		return flame.Load(path)
	}
}

func printSummary(w io.Writer, eventLog *flame.EventLog) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, summaryTitle.Render("Capture Summary"))
	fmt.Fprintln(w, summaryDim.Render(strings.Repeat("═", 56)))

	if eventLog.IsEmpty() {
		fmt.Fprintln(w, "  (no events)")
		return
	}

	fmt.Fprintf(w, "  start: %s   wall time: %v\n",
		time.Unix(0, int64(eventLog.StartTime)).UTC().Format(time.RFC3339Nano),
		time.Duration(eventLog.TotalDuration))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s %s %s %s\n",
		summaryHeader.Render("THREAD      "),
		summaryHeader.Render("SPANS "),
		summaryHeader.Render("MAX DEPTH "),
		summaryHeader.Render("BUSY        "))
	fmt.Fprintln(w, "  "+summaryDim.Render(strings.Repeat("─", 56)))

	for _, id := range eventLog.ThreadIDs() {
		th := eventLog.Threads[id]
		var busy time.Duration
		for _, s := range th.Spans {
			if s.Depth == 0 {
				busy += time.Duration(s.Duration)
			}
		}
		fmt.Fprintf(w, "  %-14d %-7d %-11d %v\n", id, len(th.Spans), th.MaxDepth(), busy)
	}

	fmt.Fprintln(w, "  "+summaryDim.Render(strings.Repeat("─", 56)))
	fmt.Fprintf(w, "  %-14s %d spans across %d threads\n",
		lipgloss.NewStyle().Bold(true).Render("TOTAL"),
		eventLog.Len(), len(eventLog.Threads))
}
