package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/history"
	"github.com/neuraxis/ctreport/internal/model"
	"github.com/neuraxis/ctreport/internal/report"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [files or archives]",
		Short: "Analyze a brain CT series and generate a clinical report",
		Long: `Analyze runs the full pipeline over local DICOM files or archives.

Inputs may be individual DICOM files, ZIP or TAR archives containing them,
or any mix. Non-DICOM entries inside archives are ignored; DICOM files that
cannot be decoded are excluded from analysis and listed in the result.

Examples:
  # Analyze a directory export
  ctreport analyze series.zip

  # Analyze individual slices
  ctreport analyze slice_*.dcm

  # Write a JSON result to a file
  ctreport analyze --json --output result.json series.zip

  # Use a generation backend on another host
  ctreport analyze --generate-url http://gpu-box:11434 series.zip`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyzeCmd,
	}

	// Model flags
	cmd.Flags().StringP("model", "M", config.DefaultModelPath,
		"Path to the ONNX detection model")
	cmd.Flags().String("onnx-lib", "",
		"Path to the onnxruntime shared library (default: platform search path)")
	cmd.Flags().Bool("cpu", false,
		"Force general-purpose compute even when an accelerator is available")
	cmd.Flags().IntP("batch", "b", config.DefaultMaxBatchSize,
		"Maximum images per inference call")
	cmd.Flags().IntP("workers", "w", config.DefaultDecodeWorkers,
		"Concurrent decode workers")
	cmd.Flags().Float64P("threshold", "t", config.DefaultAbnormalThreshold,
		"Aggregate confidence above which an abnormality is asserted")

	// Generation flags
	cmd.Flags().String("generate-url", config.DefaultGenerateURL,
		"Base URL of the text-generation backend")
	cmd.Flags().String("generate-model", config.DefaultGenerateModel,
		"Text-generation model name")
	cmd.Flags().Duration("generate-timeout", config.DefaultGenerateTimeout,
		"Timeout for one generation call")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ctreport in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON result (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not record this run in the run history database")

	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildAnalyzeConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runAnalyze(ctx, cfg, logger)
}

// buildAnalyzeConfig creates a Config from cobra command flags.
// Flag values take precedence over the config file.
func buildAnalyzeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	cfg.ConfigFilePath, _ = cmd.Flags().GetString("config") //nolint:errcheck // flag is registered above
	if err := applyConfigFile(cfg); err != nil {
		return nil, err
	}

	// Only flags the user actually set override the file; reading an
	// unset flag would write its default back over the file value.
	var err error
	if cmd.Flags().Changed("model") {
		if cfg.ModelPath, err = cmd.Flags().GetString("model"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("onnx-lib") {
		if cfg.ONNXLibraryPath, err = cmd.Flags().GetString("onnx-lib"); err != nil {
			return nil, err
		}
	}
	cpuOnly, err := cmd.Flags().GetBool("cpu")
	if err != nil {
		return nil, err
	}
	cfg.PreferAccelerator = !cpuOnly

	if cmd.Flags().Changed("batch") {
		if cfg.MaxBatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("workers") {
		if cfg.DecodeWorkers, err = cmd.Flags().GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("threshold") {
		if cfg.AbnormalThreshold, err = cmd.Flags().GetFloat64("threshold"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("generate-url") {
		if cfg.GenerateURL, err = cmd.Flags().GetString("generate-url"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("generate-model") {
		if cfg.GenerateModel, err = cmd.Flags().GetString("generate-model"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("generate-timeout") {
		if cfg.GenerateTimeout, err = cmd.Flags().GetDuration("generate-timeout"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveRuns = !noSave
	if cfg.DataDir == "" {
		cfg.DataDir = config.XDGDataDir()
	}

	cfg.Inputs = args
	return cfg, nil
}

// runAnalyze executes one local analysis run.
func runAnalyze(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	inputs, err := readInputs(cfg.Inputs)
	if err != nil {
		return err
	}

	orch, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Analyzing %d input(s)...\n", len(inputs))
	startTime := time.Now()

	result, runErr := orch.Run(ctx, inputs)

	if runErr == nil {
		fmt.Printf("Analysis completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))
	}

	if result != nil {
		if err := outputResult(cfg, result); err != nil {
			logger.Error("failed to write result", "error", err)
		}
		if cfg.SaveRuns {
			saveRun(ctx, cfg, result, logger)
		}
	}

	if runErr != nil {
		return fmt.Errorf("analysis failed: %w", runErr)
	}
	return nil
}

// readInputs loads each named file into memory for collection.
func readInputs(paths []string) ([]collector.Input, error) {
	inputs := make([]collector.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", path, err)
		}
		inputs = append(inputs, collector.Input{Name: filepath.Base(path), Data: data})
	}
	return inputs, nil
}

// outputResult writes the result in the configured format and destination.
// Markdown is the default format for terminal use.
func outputResult(cfg *config.Config, result *model.PipelineResult) error {
	var out io.Writer = os.Stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.Create(cfg.ReportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	if cfg.JSONReport {
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	} else {
		w = report.NewMarkdownWriter(out)
	}
	if _, err := w.Write(result); err != nil {
		return err
	}
	return nil
}

// saveRun records the run in the history database. Persistence failures are
// logged, not fatal; the analysis already happened.
func saveRun(ctx context.Context, cfg *config.Config, result *model.PipelineResult, logger *slog.Logger) {
	store, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		logger.Warn("failed to open run history", "error", err)
		return
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, result)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("failed to persist run", "error", err)
		}
		return
	}
	logger.Info("run recorded", "run_id", id)
}
