package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/biopub/harvester/internal/analyze"
	"github.com/biopub/harvester/internal/clock/system"
	"github.com/biopub/harvester/internal/dispatcher"
	"github.com/biopub/harvester/internal/harvest"
	"github.com/biopub/harvester/internal/input"
	"github.com/biopub/harvester/internal/progress"
	"github.com/biopub/harvester/internal/progress/sinks"
	"github.com/biopub/harvester/internal/sink"
	"github.com/biopub/harvester/internal/telemetry"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetch and normalize every document in the input manifest",
		Long: `Reads the URL manifest, fetches each document through the worker pool,
and appends one record per URL to the output stream. The run summary is
printed at the end; a failure analysis follows whenever at least one
document failed.`,

		RunE: runHarvestCommand,
	}

	cmd.Flags().String("input", "", "CSV manifest of source URLs")
	cmd.Flags().String("output", "", "output JSONL path")
	cmd.Flags().Int("workers", 0, "worker pool ceiling")
	_ = viper.BindPFlag("harvest.input_file", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("harvest.output_file", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("harvest.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	logger, err := resolveLogger(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := harvest.LoadConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load harvest config: %w", err)
	}

	manifest, err := input.Load(cfg.InputFile)
	if err != nil {
		return err
	}
	fmt.Printf("Manifest: %d rows, %d valid URLs, %d skipped\n",
		manifest.Rows, len(manifest.URLs), manifest.Skipped)
	if len(manifest.URLs) == 0 {
		fmt.Println("No URLs to process.")
		return nil
	}

	out, err := sink.Open(cfg.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("close output failed", zap.Error(cerr))
		}
	}()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)

	var tsrv *telemetry.Server
	if cfg.TelemetryEnabled {
		tsrv = telemetry.NewServer(cfg.TelemetryListen, registry, logger)
		tsrv.Start()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disp := dispatcher.New(cfg, nil, out, system.New(), hub, logger)
	summary := disp.Run(ctx, manifest.URLs)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	if tsrv != nil {
		if err := tsrv.Shutdown(closeCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}

	printSummary(summary)

	if summary.Failed > 0 {
		report, aerr := analyze.File(cfg.OutputFile)
		if aerr != nil {
			logger.Warn("failure analysis failed", zap.Error(aerr))
		} else {
			fmt.Print(report.Render())
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return nil
}

func printSummary(s harvest.RunSummary) {
	fmt.Printf("\nComplete! (run %s, %s)\n", s.RunID, s.Elapsed.Round(time.Millisecond))
	fmt.Printf("  URLs submitted:  %d\n", s.Submitted)
	fmt.Printf("  Records written: %d\n", s.Written)
	fmt.Printf("  Success:         %d\n", s.Succeeded)
	fmt.Printf("  Failed:          %d\n", s.Failed)
	if s.Written != int64(s.Submitted) {
		fmt.Printf("\nWARNING: wrote %d records but expected %d\n", s.Written, s.Submitted)
	}
}
