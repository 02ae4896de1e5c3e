package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/dicomweb"
	"github.com/neuraxis/ctreport/internal/history"
	"github.com/neuraxis/ctreport/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Long: `Serve exposes the analysis pipeline over HTTP.

Endpoints:
  GET  /api/health                          liveness and version
  POST /api/inference                       analyze a multipart upload
  GET  /api/albums/studies                  list remote album studies
  GET  /api/albums/studies/{uid}/series     list series within a study
  POST /api/inference/from-album            analyze a remote album series

Album endpoints require --album-url and --album-token.

Examples:
  # Serve on the default port
  ctreport serve

  # Serve with remote album access
  ctreport serve --album-url https://demo.kheops.online --album-token TOKEN`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"HTTP listen address")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Per-request deadline covering a whole pipeline run")
	cmd.Flags().Int64("max-upload", config.DefaultMaxUploadSize,
		"Maximum upload payload in bytes")

	// Album flags
	cmd.Flags().String("album-url", "",
		"Remote album (DICOMweb) base URL")
	cmd.Flags().String("album-token", "",
		"Bearer token for album access")

	// Model and generation flags shared with analyze
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
	cmd.Flags().String("generate-url", config.DefaultGenerateURL,
		"Base URL of the text-generation backend")
	cmd.Flags().String("generate-model", config.DefaultGenerateModel,
		"Text-generation model name")
	cmd.Flags().Duration("generate-timeout", config.DefaultGenerateTimeout,
		"Timeout for one generation call")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ctreport in current or home directory)")
	cmd.Flags().Bool("no-save", false,
		"Do not record runs in the run history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
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

	orch, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []server.Option{
		server.WithMaxUploadSize(cfg.MaxUploadSize),
		server.WithVersion(getVersion()),
		server.WithLogger(logger),
	}

	if cfg.AlbumBaseURL != "" {
		opts = append(opts, server.WithAlbumClient(
			dicomweb.NewClient(cfg.AlbumBaseURL, cfg.AlbumToken)))
		logger.Info("album access enabled", "url", cfg.AlbumBaseURL)
	}

	if cfg.SaveRuns {
		store, err := history.Open(cfg.DataDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()
		opts = append(opts, server.WithRunStore(store))
	}

	srv := server.New(orch, opts...)
	return srv.ListenAndServe(ctx, cfg.ListenAddr, cfg.RequestTimeout)
}

// buildServeConfig creates a Config from serve command flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	cfg.ConfigFilePath, _ = cmd.Flags().GetString("config") //nolint:errcheck // flag is registered above
	if err := applyConfigFile(cfg); err != nil {
		return nil, err
	}

	// Only flags the user actually set override the file; reading an
	// unset flag would write its default back over the file value.
	var err error
	if cmd.Flags().Changed("listen") {
		if cfg.ListenAddr, err = cmd.Flags().GetString("listen"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("request-timeout") {
		if cfg.RequestTimeout, err = cmd.Flags().GetDuration("request-timeout"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("max-upload") {
		if cfg.MaxUploadSize, err = cmd.Flags().GetInt64("max-upload"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("album-url") {
		if cfg.AlbumBaseURL, err = cmd.Flags().GetString("album-url"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("album-token") {
		if cfg.AlbumToken, err = cmd.Flags().GetString("album-token"); err != nil {
			return nil, err
		}
	}

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

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveRuns = !noSave
	if cfg.DataDir == "" {
		cfg.DataDir = config.XDGDataDir()
	}

	return cfg, nil
}
