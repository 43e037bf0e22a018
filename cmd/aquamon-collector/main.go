// Aquamon collector - water quality poll daemon.
//
// The collector polls a LAN-attached multi-parameter aquarium sensor on
// a fixed cadence, decodes its raw data points into physical readings,
// writes them to the time-series store, and journals every cycle's
// outcome. It runs unattended next to the tank; the query daemon serves
// the recorded data.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seafront-labs/aquamon/internal/collector"
	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/database"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/infrastructure/mqtt"
	"github.com/seafront-labs/aquamon/internal/infrastructure/tsdb"
	"github.com/seafront-labs/aquamon/internal/journal"
	"github.com/seafront-labs/aquamon/internal/observability/metrics"
	"github.com/seafront-labs/aquamon/internal/tuya"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
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
	log := logging.Default("collector")
	log.Info("starting aquamon collector", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, "collector", version)

	metrics.Init()

	// Open the cycle journal
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
	log.Info("journal database opened", "path", cfg.Journal.Path)

	jrnl, err := journal.New(db)
	if err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}

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
	log.Info("time-series store connected", "url", cfg.TSDB.URL, "bucket", cfg.TSDB.Bucket)

	// Connect to MQTT broker (optional)
	var announce collector.Announcer
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Info("MQTT disabled")
	case err != nil:
		return fmt.Errorf("connecting to MQTT: %w", err)
	default:
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		announce = mqtt.NewAnnouncer(mqttClient, log)
	}

	// Device client
	client, err := tuya.NewClient(cfg.Device, cfg.Poll.MaxSessionFailures, log)
	if err != nil {
		return fmt.Errorf("creating device client: %w", err)
	}
	source := collector.NewDeviceSource(client)
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			log.Error("error closing device session", "error", closeErr)
		}
	}()

	sink := collector.NewSink(store, cfg.Sink, log)
	scheduler := collector.NewScheduler(source, sink, jrnl, announce, dps.DefaultTable, cfg.Poll, log)

	// Prometheus self-metrics listener (optional)
	if cfg.Metrics.Enabled {
		metricsServer := startMetricsServer(cfg.Metrics, log)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if closeErr := metricsServer.Shutdown(shutdownCtx); closeErr != nil {
				log.Error("error closing metrics server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, starting poll loop",
		"device", cfg.Device.ID,
		"interval", cfg.Poll.PollInterval().String(),
	)

	if err := scheduler.Run(ctx); err != nil {
		return fmt.Errorf("poll loop: %w", err)
	}

	log.Info("aquamon collector stopped")
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

// startMetricsServer exposes /metrics on its own listener so the
// collector's instrumentation is scrapeable without the query daemon.
func startMetricsServer(cfg config.MetricsConfig, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	return server
}
