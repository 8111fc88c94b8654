package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/montaglue/racy/internal/flame"
	"github.com/montaglue/racy/internal/view"
)

var exampleOutput string

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Emit the built-in example view, for renderer development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventLog := flame.Example()

		if exampleOutput == "" {
			data, err := view.Export(eventLog)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}

		if err := view.WriteFile(exampleOutput, eventLog); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", exampleOutput)
		return nil
	},
}

func init() {
	exampleCmd.Flags().StringVarP(&exampleOutput, "output", "o", "", "write the view to a file instead of stdout")
}
