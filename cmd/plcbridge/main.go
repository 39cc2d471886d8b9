// plcbridge polls a controller over Modbus TCP and bridges its device
// values to ZeroMQ and MQTT.
//
// Changed values are published as JSON on "{prefix}/{address}"; write
// commands arrive on "{prefix}/{address}/set". A rising edge on the
// configured trigger bit sends a trigger command to a barcode reader.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
//   - SIGHUP: reconnect the controller and restart polling
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/nerrad567/plcbridge/migrations"

	"github.com/nerrad567/plcbridge/internal/audit"
	"github.com/nerrad567/plcbridge/internal/barcode"
	"github.com/nerrad567/plcbridge/internal/device"
	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
	"github.com/nerrad567/plcbridge/internal/infrastructure/database"
	"github.com/nerrad567/plcbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/plcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/plcbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/plcbridge/internal/infrastructure/zeromq"
	"github.com/nerrad567/plcbridge/internal/monitor"
	"github.com/nerrad567/plcbridge/internal/plc"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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

// run is the application logic, separated from main for testability.
// Only the controller configuration is fatal; every optional subsystem
// that fails to start is logged and left disabled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting plcbridge",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	addresses, err := addressMap(cfg.PLC.Addresses)
	if err != nil {
		return fmt.Errorf("building address map: %w", err)
	}
	devices, err := buildDevices(cfg.Devices)
	if err != nil {
		return fmt.Errorf("building devices: %w", err)
	}
	registry, err := device.NewRegistry(devices)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Len())

	port := plc.NewModbusPort(plc.ModbusConfig{
		Endpoint:  net.JoinHostPort(cfg.PLC.Host, strconv.Itoa(cfg.PLC.Port)),
		UnitID:    byte(cfg.PLC.StationNumber),
		Timeout:   cfg.PLC.Timeout(),
		Addresses: addresses,
	})
	link := plc.NewLink(port)

	// Audit trail (optional)
	var db *database.DB
	var recorder *audit.Recorder
	if cfg.Database.Enabled {
		db, recorder = openAudit(ctx, cfg.Database, log)
		if db != nil {
			defer func() {
				log.Info("closing database")
				if closeErr := db.Close(); closeErr != nil {
					log.Error("error closing database", "error", closeErr)
				}
			}()
			// Registered after the database so it flushes first.
			defer func() {
				if closeErr := recorder.Close(); closeErr != nil {
					log.Error("error closing audit recorder", "error", closeErr)
				}
				written, dropped := recorder.Stats()
				log.Info("audit recorder closed", "written", written, "dropped", dropped)
			}()
		}
	} else {
		log.Info("command audit disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	var metrics monitor.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			metrics = influxdb.NewMetrics(influxClient, cfg.MQTT.Broker.ClientID)
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Outbound buses. The service owns every sink, source and trigger
	// handed to it and closes them in Close.
	var sinks []monitor.Sink
	if cfg.ZeroMQ.Enabled {
		pub, pubErr := zeromq.NewPublisher(ctx, zeromq.PublisherConfig{
			Endpoint:    cfg.ZeroMQ.PublishEndpoint,
			TopicPrefix: cfg.ZeroMQ.TopicPrefix,
			QueueSize:   cfg.ZeroMQ.QueueSize,
		})
		if pubErr != nil {
			log.Warn("ZeroMQ publisher unavailable", "error", pubErr)
		} else {
			pub.SetLogger(log.Component("zeromq"))
			sinks = append(sinks, pub)
			log.Info("ZeroMQ publisher bound", "endpoint", cfg.ZeroMQ.PublishEndpoint)
		}
	} else {
		log.Info("ZeroMQ disabled")
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT broker unavailable", "error", err)
			mqttClient = nil
		} else {
			mqttClient.SetLogger(log.Component("mqtt"))
			sinks = append(sinks, mqtt.NewSink(mqttClient))
			log.Info("MQTT connected",
				"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
				"client_id", mqttClient.ClientID(),
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Barcode reader (optional)
	var trigger monitor.Trigger
	if cfg.Barcode.Enabled {
		reader, readerErr := connectBarcode(ctx, cfg.Barcode, log)
		if readerErr != nil {
			log.Warn("barcode reader unavailable", "error", readerErr)
		} else {
			trigger = reader
		}
	} else {
		log.Info("barcode trigger disabled")
	}

	opts := monitor.Options{
		Link:     link,
		Registry: registry,
		Sinks:    sinks,
		Trigger:  trigger,
		TriggerConfig: monitor.TriggerConfig{
			Enabled: trigger != nil,
			Device:  cfg.Barcode.TriggerDevice,
			Bit:     uint(cfg.Barcode.TriggerBit),
			Command: cfg.Barcode.TriggerCommand,
			Timeout: cfg.Barcode.ConnectionTimeout(),
		},
		Interval:       cfg.Interval(),
		WriteQueueSize: cfg.Monitoring.WriteQueueSize,
		Metrics:        metrics,
		Logger:         log.Component("monitor"),
	}
	// A nil *audit.Recorder in the interface would not compare equal to nil.
	if recorder != nil {
		opts.Recorder = recorder
	}

	svc, err := monitor.NewService(opts)
	if err != nil {
		for _, sink := range sinks {
			_ = sink.Close()
		}
		if trigger != nil {
			_ = trigger.Close()
		}
		return fmt.Errorf("creating monitor: %w", err)
	}
	defer func() {
		log.Info("closing monitor")
		if closeErr := svc.Close(); closeErr != nil {
			log.Error("error closing monitor", "error", closeErr)
		}
	}()

	go logSignals(ctx, svc.Signals(), log)

	// Inbound buses need the service for their handlers.
	attachSources(ctx, cfg, svc, log)

	if mqttClient != nil {
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			svc.NotifyPublisherState()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
			svc.NotifyPublisherState()
		})
	}
	svc.NotifyPublisherState()

	if connErr := svc.Connect(); connErr != nil {
		log.Warn("controller not reachable, poll loop will retry", "error", connErr)
	}
	if startErr := svc.Start(ctx); startErr != nil {
		return fmt.Errorf("starting monitor: %w", startErr)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		log.Warn("health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info("initialisation complete, waiting for shutdown signal")

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			// Deferred Close() calls run in reverse order: monitor (buses,
			// trigger, controller link), InfluxDB, audit recorder, database.
			return nil
		case <-hup:
			log.Info("SIGHUP received, reconnecting controller")
			if connErr := svc.Connect(); connErr != nil {
				log.Warn("controller reconnect failed", "error", connErr)
			}
			if startErr := svc.Start(ctx); startErr != nil {
				log.Error("restarting poll loop failed", "error", startErr)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses PLCBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PLCBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// addressMap overlays the configured device-code mappings on the defaults.
func addressMap(overrides map[string]config.AddressMapping) (plc.AddressMap, error) {
	m := plc.DefaultAddressMap()
	for code, o := range overrides {
		area, err := plc.ParseArea(o.Area)
		if err != nil {
			return nil, fmt.Errorf("plc.addresses.%s: %w", code, err)
		}
		if o.Base < 0 || o.Base > 0xFFFF {
			return nil, fmt.Errorf("plc.addresses.%s: base %d out of range", code, o.Base)
		}
		m[code] = plc.Mapping{Area: area, Base: uint16(o.Base), Hex: o.Hex}
	}
	return m, nil
}

func buildDevices(cfgs []config.DeviceConfig) ([]device.Device, error) {
	devices := make([]device.Device, 0, len(cfgs))
	for _, dc := range cfgs {
		t, err := device.ParseType(dc.Type)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.Address, err)
		}
		devices = append(devices, device.Device{
			Address: dc.Address,
			Name:    dc.Name,
			Type:    t,
		})
	}
	return devices, nil
}

// openAudit opens the audit database and starts the recorder. It returns
// nils when the database cannot be used.
func openAudit(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, *audit.Recorder) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		log.Warn("audit database unavailable, command audit disabled", "error", err)
		return nil, nil
	}
	if err := db.Migrate(ctx); err != nil {
		log.Warn("audit migrations failed, command audit disabled", "error", err)
		_ = db.Close()
		return nil, nil
	}
	log.Info("database connected", "path", cfg.Path)

	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), 0)
	recorder.SetLogger(log.Component("audit"))
	return db, recorder
}

func connectBarcode(ctx context.Context, cfg config.BarcodeConfig, log *logging.Logger) (*barcode.Client, error) {
	readerCfg := barcode.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ConnectTimeout: cfg.ConnectionTimeout(),
		AutoReconnect:  cfg.AutoReconnect,
	}
	reader, err := barcode.New(readerCfg)
	if err != nil {
		return nil, err
	}
	reader.SetLogger(log.Component("barcode"))
	reader.SetOnStateChange(func(connected bool) {
		log.Info("barcode reader connection changed", "connected", connected)
	})

	if err := reader.Connect(ctx); err != nil {
		if !cfg.AutoReconnect {
			_ = reader.Close()
			return nil, err
		}
		// The first trigger retries the dial.
		log.Warn("barcode reader not reachable yet", "address", readerCfg.Address(), "error", err)
	}
	return reader, nil
}

// attachSources subscribes to the enabled command buses and registers
// them with svc.
func attachSources(ctx context.Context, cfg *config.Config, svc *monitor.Service, log *logging.Logger) {
	if cfg.ZeroMQ.Enabled && cfg.ZeroMQ.SubscribeEnabled {
		sub, err := zeromq.NewSubscriber(ctx, zeromq.SubscriberConfig{
			Endpoint:    cfg.ZeroMQ.SubscribeEndpoint,
			TopicPrefix: cfg.ZeroMQ.TopicPrefix,
		}, func(topic string, payload []byte) {
			_ = svc.HandleCommand(zeromq.BusName, topic, payload)
		}, log.Component("zeromq"))
		if err != nil {
			log.Warn("ZeroMQ subscriber unavailable", "error", err)
		} else {
			svc.AttachSource(sub)
			log.Info("ZeroMQ subscriber connected", "endpoint", cfg.ZeroMQ.SubscribeEndpoint)
		}
	}

	if cfg.MQTT.Enabled && cfg.MQTT.SubscribeEnabled {
		subClient, err := mqtt.ConnectSubscriber(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT subscriber unavailable", "error", err)
			return
		}
		subClient.SetLogger(log.Component("mqtt"))

		// Rejected commands are already logged and audited by the service;
		// returning nil keeps the client from logging them twice.
		src, err := mqtt.SubscribeCommands(subClient, func(topic string, payload []byte) error {
			_ = svc.HandleCommand(mqtt.BusName, topic, payload)
			return nil
		})
		if err != nil {
			_ = subClient.Close()
			log.Warn("MQTT command subscription failed", "error", err)
			return
		}
		svc.AttachSource(src)
		log.Info("MQTT command subscription active", "topic", src.Topic())
	}
}

// logSignals drains the service events until ctx is done.
func logSignals(ctx context.Context, signals <-chan monitor.Signal, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			switch sig.Kind {
			case monitor.SignalControllerConnection:
				log.Info("controller connection changed", "connected", sig.Connected)
			case monitor.SignalPublisherState:
				log.Info("publisher state changed", "zmq", sig.ZMQConnected, "mqtt", sig.MQTTConnected)
			case monitor.SignalError:
				log.Error(sig.Title, "message", sig.Message)
			case monitor.SignalAutoReconnectExhausted:
				log.Error("controller reconnect attempts exhausted, polling halted; send SIGHUP to retry")
			case monitor.SignalDeviceValuesChanged:
				log.Debug("device values changed")
			}
		}
	}
}

// healthCheck verifies the optional infrastructure connections that
// were started. Nil clients are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}

	return errors.Join(errs...)
}
