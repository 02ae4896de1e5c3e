package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neuraxis/ctreport/internal/config"
)

// TestNewServeCmd tests the serve command creation.
func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "serve" {
			t.Errorf("expected use 'serve', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("takes no arguments", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Error("expected Args validator")
		}
	})

	t.Run("has listen flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("listen")
		if flag == nil {
			t.Fatal("expected listen flag")
		}
		if flag.Shorthand != "l" {
			t.Errorf("expected shorthand 'l', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultListenAddr {
			t.Errorf("expected default %q, got %q", config.DefaultListenAddr, flag.DefValue)
		}
	})

	t.Run("has request-timeout flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("request-timeout") == nil {
			t.Error("expected request-timeout flag")
		}
	})

	t.Run("has max-upload flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("max-upload") == nil {
			t.Error("expected max-upload flag")
		}
	})

	t.Run("has album flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"album-url", "album-token"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has model and generation flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"model", "onnx-lib", "cpu", "batch", "workers",
			"threshold", "generate-url", "generate-model", "generate-timeout"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestBuildServeConfig tests configuration building from serve flags.
func TestBuildServeConfig(t *testing.T) {
	t.Run("builds config with default values", func(t *testing.T) {
		cmd := NewServeCmd()
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if cfg.ListenAddr != config.DefaultListenAddr {
			t.Errorf("expected listen addr %q, got %q", config.DefaultListenAddr, cfg.ListenAddr)
		}
		if cfg.MaxUploadSize != config.DefaultMaxUploadSize {
			t.Errorf("expected max upload %d, got %d", config.DefaultMaxUploadSize, cfg.MaxUploadSize)
		}
		if cfg.AlbumBaseURL != "" {
			t.Errorf("expected empty album URL, got %q", cfg.AlbumBaseURL)
		}
	})

	t.Run("builds config with custom listen address", func(t *testing.T) {
		cmd := NewServeCmd()
		_ = cmd.Flags().Set("listen", ":9090")
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ListenAddr != ":9090" {
			t.Errorf("expected ListenAddr ':9090', got %q", cfg.ListenAddr)
		}
	})

	t.Run("builds config with album access", func(t *testing.T) {
		cmd := NewServeCmd()
		_ = cmd.Flags().Set("album-url", "https://demo.kheops.online")
		_ = cmd.Flags().Set("album-token", "secret")
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.AlbumBaseURL != "https://demo.kheops.online" {
			t.Errorf("expected album URL 'https://demo.kheops.online', got %q", cfg.AlbumBaseURL)
		}
		if cfg.AlbumToken != "secret" {
			t.Errorf("expected album token 'secret', got %q", cfg.AlbumToken)
		}
	})

	t.Run("config file values survive unset flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".ctreport")
		content := "listen_addr: :7070\n" +
			"max_upload_size_mb: 100\n" +
			"max_batch_size: 4\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewServeCmd()
		_ = cmd.Flags().Set("config", path)
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ListenAddr != ":7070" {
			t.Errorf("expected ListenAddr ':7070' from file, got %q", cfg.ListenAddr)
		}
		if cfg.MaxUploadSize != 100*1024*1024 {
			t.Errorf("expected MaxUploadSize 100MB from file, got %d", cfg.MaxUploadSize)
		}
		if cfg.MaxBatchSize != 4 {
			t.Errorf("expected MaxBatchSize 4 from file, got %d", cfg.MaxBatchSize)
		}
	})

	t.Run("set flags win over the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".ctreport")
		if err := os.WriteFile(path, []byte("listen_addr: :7070\n"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewServeCmd()
		_ = cmd.Flags().Set("config", path)
		_ = cmd.Flags().Set("listen", ":9090")
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ListenAddr != ":9090" {
			t.Errorf("expected flag value ':9090' to win, got %q", cfg.ListenAddr)
		}
	})

	t.Run("builds config with custom upload limit", func(t *testing.T) {
		cmd := NewServeCmd()
		_ = cmd.Flags().Set("max-upload", "1048576")
		cfg, err := buildServeConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxUploadSize != 1048576 {
			t.Errorf("expected MaxUploadSize 1048576, got %d", cfg.MaxUploadSize)
		}
	})
}
