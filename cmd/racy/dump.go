package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/montaglue/racy/internal/codec"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [log file]",
	Short: "Decode a capture log and print its raw events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := codec.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}

		events, err := codec.ReadFile(path)
		if err != nil {
			return fmt.Errorf("dump %s: %w", path, err)
		}
		log.Debugf("decoded %d events from %s", len(events), path)

		w := os.Stdout
		fmt.Fprintf(w, "%-12s %-30s %-16s %s\n", "THREAD", "TIMESTAMP", "DURATION", "NAME")
		for _, ev := range events {
			fmt.Fprintf(w, "%-12d %-30s %-16s %s\n",
				ev.ID,
				time.Unix(0, int64(ev.Timestamp)).UTC().Format(time.RFC3339Nano),
				time.Duration(ev.Duration),
				ev.Name)
		}
		return nil
	},
}
