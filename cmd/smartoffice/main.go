// Smart Office Core - Automation Rule Engine
//
// This is the main entry point for the Smart Office Core application.
// It binds motion sensors to device actions through user-defined rules:
//   - Rules and scenes persisted in SQLite
//   - Motion triggers via REST or MQTT
//   - Resolved commands dispatched to devices over MQTT
//   - Estimated energy savings recorded to InfluxDB
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nfarrow/smart-office-core/migrations"

	"github.com/nfarrow/smart-office-core/internal/api"
	"github.com/nfarrow/smart-office-core/internal/automation"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/config"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/database"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/influxdb"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/logging"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/mqtt"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Smart Office Core",
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Build the rule engine on top of the SQLite repositories
	ruleRepo := automation.NewSQLiteRuleRepository(db.DB)
	sceneRepo := automation.NewSQLiteSceneRepository(db.DB)
	execLog := automation.NewSQLiteExecutionLog(db.DB)
	engine := automation.NewEngine(ruleRepo, sceneRepo, execLog, nil, log)
	log.Info("automation engine initialised")

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// Resolved rule commands go out over MQTT
		engine.SetDispatcher(mqttClient)

		// Motion sensors can publish triggers directly to the broker
		if subErr := subscribeMotionEvents(ctx, mqttClient, engine, log); subErr != nil {
			return fmt.Errorf("subscribing to motion events: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled, commands will not be dispatched")
	}

	// Connect to InfluxDB (optional)
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

		// Per-command energy estimates flow to the time-series store
		engine.SetTelemetryRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the API server with a hub shared with the engine, so rule
	// firings stream to WebSocket clients.
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  engine,
		DB:      db,
		MQTT:    mqttClient,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	engine.SetBroadcaster(server.Hub())

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Smart Office Core stopped")
	return nil
}

// subscribeMotionEvents routes broker-published motion events through the
// rule engine. Malformed payloads are logged and dropped; the subscription
// stays alive.
func subscribeMotionEvents(ctx context.Context, client *mqtt.Client, engine *automation.Engine, log *logging.Logger) error {
	topics := mqtt.Topics{}
	topic := topics.AllMotionEvents()
	log.Info("subscribing to motion events", "topic", topic)

	return client.Subscribe(topic, 1, func(t string, payload []byte) error {
		var raw map[string]any
		if err := json.Unmarshal(payload, &raw); err != nil {
			log.Warn("dropping malformed motion payload", "topic", t, "error", err)
			return nil
		}

		event, err := automation.ParseTrigger(raw)
		if err != nil {
			log.Warn("dropping invalid motion event", "topic", t, "error", err)
			return nil
		}

		result, err := engine.HandleMotion(ctx, event)
		if err != nil {
			log.Error("motion event processing failed", "sensor_id", event.SensorID, "error", err)
			return nil
		}

		log.Debug("motion event handled",
			"sensor_id", event.SensorID,
			"processed", result.Processed,
			"matched_rules", len(result.MatchedRules),
		)
		return nil
	})
}

// getConfigPath returns the configuration file path.
// Uses SMARTOFFICE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTOFFICE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
