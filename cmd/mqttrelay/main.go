// MQTT Relay Service
//
// This is the main entry point for the relay service. It bridges local MQTT
// brokers with a cloud platform:
//   - The platform supplies the relay list and verifies each relay's
//     network token at startup
//   - A supervisor keeps one connection worker alive per relay
//   - Broker messages on subscribed topics are forwarded upstream
//   - An HTTP ingress accepts publish requests from local clients
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/mqtt-relay/internal/api"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-relay/internal/platform"
	"github.com/nerrad567/mqtt-relay/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting MQTT relay service",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Create platform client
	platformClient, err := platform.New(cfg.Platform, log)
	if err != nil {
		return fmt.Errorf("creating platform client: %w", err)
	}

	// Fetch the relay list. The platform is the only source of relay
	// configuration; without it there is nothing to supervise.
	relays, err := platformClient.FetchRelays(ctx)
	if err != nil {
		return fmt.Errorf("fetching relay list: %w", err)
	}
	log.Info("relay list fetched", "relays", len(relays))

	// Verify every relay's network token before serving begins. A relay
	// with rejected credentials would connect to its broker but have its
	// forwarded messages refused, so failure here is fatal.
	for _, rc := range relays {
		if verifyErr := platformClient.VerifyToken(ctx, rc); verifyErr != nil {
			return fmt.Errorf("verifying relay %q: %w", rc.ID, verifyErr)
		}
	}
	log.Info("relay tokens verified")

	registry, err := relay.NewRegistry(relays)
	if err != nil {
		return fmt.Errorf("building relay registry: %w", err)
	}

	// Connect to InfluxDB (optional telemetry)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the connection supervisor
	supervisor, err := relay.NewSupervisor(relay.SupervisorDeps{
		Registry:        registry,
		Dial:            relay.NewDialer(cfg.MQTT),
		Forward:         platformClient,
		Metrics:         influxClient,
		Logger:          log,
		RestartInterval: cfg.RestartInterval(),
		QueueCapacity:   cfg.Supervisor.QueueCapacity,
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}
	go supervisor.Run(ctx)

	// Start the HTTP ingress
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Router:  supervisor,
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

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// Workers stop via context cancellation.

	log.Info("MQTT relay service stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MQTTRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MQTTRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
