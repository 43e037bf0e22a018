package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/journal"
	"github.com/seafront-labs/aquamon/internal/query"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// QueryService answers read requests over the recorded measurements.
type QueryService interface {
	Range(ctx context.Context, req query.RangeRequest) (*query.RangeResult, error)
	Latest(ctx context.Context) ([]query.LatestResult, error)
	Export(ctx context.Context, req query.ExportRequest) (*query.Dataset, error)
	Catalog() []dps.Mapping
}

// JournalReader exposes the collector's cycle and alarm history.
type JournalReader interface {
	RecentCycles(ctx context.Context, limit int) ([]journal.Cycle, error)
	ActiveAlarms(ctx context.Context) ([]journal.Alarm, error)
	AlarmHistory(ctx context.Context, limit int) ([]journal.Alarm, error)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Service QueryService
	Journal JournalReader
	Store   HealthChecker // optional: time-series store, reported in /health
	Version string
}

// Server is the HTTP query API for recorded water-quality data.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	service QueryService
	journal JournalReader
	store   HealthChecker
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, query service, journal)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("query service is required")
	}
	if deps.Journal == nil {
		return nil, fmt.Errorf("journal reader is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		service: deps.Service,
		journal: deps.Journal,
		store:   deps.Store,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
