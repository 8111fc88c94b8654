// Command racy inspects capture logs: it dumps raw events, reconstructs
// the nested per-thread view, and saves or summarizes reconstructed views.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "racy",
	Short:         "Inspect and reconstruct racy capture logs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exampleCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
