// Aquamon query daemon - HTTP API over recorded water quality data.
//
// The query daemon serves downsampled range queries, latest readings,
// spreadsheet exports, and the collector's cycle journal. It shares the
// collector's configuration file and reads from the same time-series
// store and journal database, but never writes sensor data itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seafront-labs/aquamon/internal/api"
	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/database"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/infrastructure/tsdb"
	"github.com/seafront-labs/aquamon/internal/journal"
	"github.com/seafront-labs/aquamon/internal/observability/metrics"
	"github.com/seafront-labs/aquamon/internal/query"
)

// Version information - set at build time via ldflags
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default("query")
	log.Info("starting aquamon query daemon", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, "query", version)

	metrics.Init()

	// Connect to the time-series store
	store, err := tsdb.Connect(ctx, cfg.TSDB)
	if err != nil {
		return fmt.Errorf("connecting to time-series store: %w", err)
	}
	defer func() {
		log.Info("closing time-series store connection")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing time-series store", "error", closeErr)
		}
	}()
	log.Info("time-series store connected", "url", cfg.TSDB.URL)

	// Open the collector's cycle journal read-side
	db, err := database.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("opening journal database: %w", err)
	}
	defer func() {
		log.Info("closing journal database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing journal database", "error", closeErr)
		}
	}()

	jrnl, err := journal.New(db)
	if err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}

	service := query.NewService(store, dps.DefaultTable, cfg.Poll.PollInterval(), log)

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Service: service,
		Journal: jrnl,
		Store:   store,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("aquamon query daemon stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AQUAMON_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AQUAMON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
