package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/montaglue/racy/internal/codec"
	"github.com/montaglue/racy/internal/flame"
	"github.com/montaglue/racy/internal/store"
	"github.com/montaglue/racy/internal/view"
)

var (
	buildOutput   string
	buildSnapshot string
)

var buildCmd = &cobra.Command{
	Use:   "build [log file]",
	Short: "Reconstruct the nested per-thread view from a capture log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := codec.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}

		log.Debugf("loading %s", path)
		eventLog, err := flame.Load(path)
		if err != nil {
			return fmt.Errorf("build %s: %w", path, err)
		}

		if err := view.WriteFile(buildOutput, eventLog); err != nil {
			return fmt.Errorf("write view: %w", err)
		}
		fmt.Printf("wrote %s: %d threads, %d spans\n",
			buildOutput, len(eventLog.Threads), eventLog.Len())

		if buildSnapshot != "" {
			w, err := store.NewWriter()
			if err != nil {
				return err
			}
			id, err := w.Write(buildSnapshot, eventLog)
			if err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Printf("wrote snapshot %s (%s)\n", buildSnapshot, id)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "racy_view.json", "view output path")
	buildCmd.Flags().StringVar(&buildSnapshot, "snapshot", "", "also write a compressed .racy snapshot")
}
