// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/biopub/harvester/internal/logging"
	"github.com/biopub/harvester/pkg/config"
)

var cfgFile string

// loggerKeyType is the key for storing the logger in the command context.
type loggerKeyType string

const loggerKey loggerKeyType = "logger"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Concurrent fetch-parse-normalize pipeline for publication pages.",
		Long: `harvester ingests a CSV manifest of source document URLs, fetches each
page concurrently, parses its structured content, and appends one
normalized JSON record per document to an output stream. Individual
document failures are recorded, never fatal.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := zap.NewNop()
			config.InitConfig(cfgFile, bootstrap)

			logger, err := logging.New(viper.GetBool("logging.development"))
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey, logger))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if logger, err := resolveLogger(cmd.Context()); err == nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func resolveLogger(ctx context.Context) (*zap.Logger, error) {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || logger == nil {
		return nil, errors.New("logger not initialized")
	}
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
