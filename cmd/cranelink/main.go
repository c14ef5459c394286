// cranelink - serial to MQTT gateway for G-code motion firmware
//
// cranelink sits between a line-oriented serial peripheral (a crane
// motion controller speaking G-code) and an MQTT broker. Commands
// arriving on the crane's command channel are forwarded to the serial
// port; every line the firmware emits is published on the response
// channel. A retained presence record plus a broker-side last will
// gives subscribers a truthful online/offline view of the gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/portmodel/cranelink/migrations"

	"github.com/portmodel/cranelink/internal/bridge"
	"github.com/portmodel/cranelink/internal/infrastructure/config"
	"github.com/portmodel/cranelink/internal/infrastructure/database"
	"github.com/portmodel/cranelink/internal/infrastructure/influxdb"
	"github.com/portmodel/cranelink/internal/infrastructure/logging"
	"github.com/portmodel/cranelink/internal/infrastructure/mqtt"
	"github.com/portmodel/cranelink/internal/journal"
	"github.com/portmodel/cranelink/internal/netlink"
	"github.com/portmodel/cranelink/internal/serial"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
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
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting cranelink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Connectivity journal (optional)
	var events *journal.Store
	var db *database.DB
	if cfg.Journal.Enabled {
		var dbErr error
		db, dbErr = database.Open(database.Config{
			Path:        cfg.Journal.Path,
			WALMode:     cfg.Journal.WALMode,
			BusyTimeout: cfg.Journal.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening journal database: %w", dbErr)
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running journal migrations: %w", migrateErr)
		}
		log.Info("journal database ready", "path", cfg.Journal.Path)

		events = journal.NewStore(db, cfg.Device.ID)
	} else {
		log.Info("journal disabled")
	}

	// InfluxDB telemetry (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Serial peripheral
	port, err := serial.Open(serial.Config{
		Port:        cfg.Device.Serial.Port,
		Baud:        cfg.Device.Serial.Baud,
		ReadTimeout: cfg.GetSerialReadTimeout(),
	})
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}
	defer func() {
		log.Info("closing serial port")
		if closeErr := port.Close(); closeErr != nil {
			log.Error("error closing serial port", "error", closeErr)
		}
	}()
	log.Info("serial port open",
		"port", cfg.Device.Serial.Port,
		"baud", cfg.Device.Serial.Baud,
	)

	// Network link
	link := newLink(cfg, log)

	// MQTT client; the connectivity supervisor inside the bridge owns
	// all connect attempts, so no Connect() here.
	mqttClient := mqtt.New(cfg.MQTT, cfg.Device.ID)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnectionLost(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
		if events != nil {
			if recErr := events.Record(ctx, journal.EventBrokerLost, err.Error()); recErr != nil {
				log.Warn("journal record failed", "error", recErr)
			}
		}
		if influxClient != nil {
			influxClient.WriteConnectivityEvent(cfg.Device.ID, journal.EventBrokerLost)
		}
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT client ready",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	b, err := bridge.New(bridge.Options{
		Identity:            cfg.Device.ID,
		Serial:              port,
		Link:                link,
		Messaging:           mqttClient,
		SSID:                cfg.Network.SSID,
		Password:            cfg.Network.Password,
		QoS:                 byte(cfg.MQTT.QoS),
		LineCapacity:        cfg.Bridge.LineCapacity,
		InboundQueue:        cfg.Bridge.InboundQueue,
		NetworkTimeout:      cfg.GetNetworkTimeout(),
		NetworkPollInterval: cfg.GetNetworkPollInterval(),
		Logger:              log,
		Events:              eventSink(events),
		Telemetry:           telemetrySink(influxClient),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	log.Info("bridge created",
		"identity", cfg.Device.ID,
		"channels", b.Channels(),
	)

	// Verify the wired infrastructure before entering the cycle. The
	// broker is deliberately absent here: it connects lazily under the
	// bridge's supervisor.
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("health checks passed")

	if events != nil {
		if recErr := events.Record(ctx, journal.EventGatewayStart, version); recErr != nil {
			log.Warn("journal record failed", "error", recErr)
		}
		defer func() {
			// ctx is cancelled by now; the record must still go through.
			if recErr := events.Record(context.Background(), journal.EventGatewayStop, ""); recErr != nil {
				log.Warn("journal record failed", "error", recErr)
			}
		}()
	}

	// Run the bridge until shutdown. The deferred Close() calls then run
	// in reverse order: MQTT (publishing retained offline presence),
	// serial, InfluxDB, journal.
	err = b.Run(ctx)

	log.Info("cranelink stopped")
	return err
}

// healthCheck verifies the optional infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Journal database (may be nil if disabled)
//   - influxClient: InfluxDB client (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal database: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// newLink selects the network link implementation from config.
func newLink(cfg *config.Config, log *logging.Logger) netlink.Link {
	if cfg.Network.Mode == "station" {
		log.Info("network link: station mode",
			"interface", cfg.Network.Interface,
			"ssid", cfg.Network.SSID,
		)
		return netlink.NewStation(cfg.Network.Interface)
	}
	log.Info("network link: wired mode")
	return netlink.Wired{}
}

// eventSink adapts an optional journal store to the bridge's sink
// interface. A typed nil pointer must become a true nil interface.
func eventSink(s *journal.Store) bridge.EventSink {
	if s == nil {
		return nil
	}
	return s
}

// telemetrySink adapts an optional InfluxDB client the same way.
func telemetrySink(c *influxdb.Client) bridge.Telemetry {
	if c == nil {
		return nil
	}
	return c
}

// getConfigPath returns the configuration file path.
// Uses CRANELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CRANELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
