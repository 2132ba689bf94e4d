package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biopub/harvester/internal/analyze"
)

// newAnalyzeCmd creates the standalone 'analyze' subcommand.
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [output-file]",
		Short: "Summarize failures in a completed output stream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := viper.GetString("harvest.output_file")
			if len(args) == 1 {
				path = args[0]
			}
			report, err := analyze.File(path)
			if err != nil {
				return err
			}
			fmt.Printf("Records: %d\n", report.Records)
			fmt.Print(report.Render())
			return nil
		},
	}
}
