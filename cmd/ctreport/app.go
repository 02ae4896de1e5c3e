package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/decode"
	"github.com/neuraxis/ctreport/internal/inference"
	logpkg "github.com/neuraxis/ctreport/internal/log"
	"github.com/neuraxis/ctreport/internal/pipeline"
	"github.com/neuraxis/ctreport/internal/preprocess"
	"github.com/neuraxis/ctreport/internal/synthesis"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger based on verbosity setting. All
// log output passes through the protected-health-information mask.
func setupLogger(verbose bool) *slog.Logger {
	return logpkg.NewPHILogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// applyConfigFile merges an optional .ctreport file into cfg. An explicitly
// requested file must exist; the default search may come up empty.
func applyConfigFile(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)

	if path == "" {
		if explicit {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	file.Apply(cfg)
	return nil
}

// buildPipeline assembles the production pipeline for cfg. The returned
// cleanup function releases the model session.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	mdl, err := inference.NewONNXModel(cfg.ModelPath, cfg.ONNXLibraryPath,
		cfg.InputSize, cfg.PreferAccelerator, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load detection model: %w", err)
	}

	scheduler := inference.NewScheduler(mdl,
		inference.WithBatchSize(cfg.MaxBatchSize),
		inference.WithThreshold(cfg.AbnormalThreshold),
		inference.WithLogger(logger),
	)

	generator := synthesis.NewClient(cfg.GenerateURL, cfg.GenerateModel, cfg.GenerateTimeout)
	synthesizer := synthesis.NewSynthesizer(generator,
		synthesis.WithRetries(cfg.GenerateRetries),
		synthesis.WithLogger(logger),
	)

	orch := pipeline.New(
		collector.New(
			collector.WithMaxDepth(cfg.MaxArchiveDepth),
			collector.WithLogger(logger),
		),
		decode.New(decode.WithLogger(logger)),
		preprocess.New(cfg.InputSize),
		scheduler,
		synthesizer,
		pipeline.WithDecodeWorkers(cfg.DecodeWorkers),
		pipeline.WithLogger(logger),
	)
	return orch, mdl.Close, nil
}
