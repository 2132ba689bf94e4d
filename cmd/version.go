package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Populated via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("harvester %s (%s)\n", version, commit)
		},
	}
}
