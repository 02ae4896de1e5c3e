package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// Runner executes one full pipeline run over the given inputs.
type Runner interface {
	Run(ctx context.Context, inputs []collector.Input) (*model.PipelineResult, error)
}

// AlbumClient lists and retrieves instances from a remote album. Nil when
// no album is configured.
type AlbumClient interface {
	ListStudies(ctx context.Context) ([]model.Study, error)
	ListSeries(ctx context.Context, studyUID string) ([]model.Series, error)
	ListInstances(ctx context.Context, studyUID, seriesUID string) ([]model.Instance, error)
	FetchInstance(ctx context.Context, inst model.Instance) ([]byte, error)
}

// RunStore persists completed runs. Nil disables history.
type RunStore interface {
	SaveRun(ctx context.Context, result *model.PipelineResult) (int64, error)
}

// Server ties the HTTP surface to the pipeline.
type Server struct {
	runner  Runner
	album   AlbumClient
	store   RunStore
	maxSize int64
	version string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAlbumClient enables the album endpoints.
func WithAlbumClient(c AlbumClient) Option {
	return func(s *Server) { s.album = c }
}

// WithRunStore enables run history persistence.
func WithRunStore(store RunStore) Option {
	return func(s *Server) { s.store = store }
}

// WithMaxUploadSize bounds inference upload payloads in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server around the pipeline runner.
func New(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		maxSize: config.DefaultMaxUploadSize,
		version: "dev",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/inference", s.handleInference)
	mux.HandleFunc("GET /api/albums/studies", s.handleListStudies)
	mux.HandleFunc("GET /api/albums/studies/{study}/series", s.handleListSeries)
	mux.HandleFunc("POST /api/inference/from-album", s.handleInferenceFromAlbum)
	return mux
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, requestTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
