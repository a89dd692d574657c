// Gray Logic Hub - device discovery and notification routing.
//
// The hub listens for device state on MQTT, registers the devices it sees,
// persists them to a JSON document and routes their events to push
// notification channels.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/sensor"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/deviceconfig"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/notification"
	"github.com/nerrad567/gray-logic-hub/internal/notification/channel"
	"github.com/nerrad567/gray-logic-hub/internal/statehistory"
	"github.com/nerrad567/gray-logic-hub/migrations"
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

// options are the command line flags.
type options struct {
	configPath  string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("graylogic %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. The config path falls back to
// GRAYLOGIC_CONFIG and then to defaultConfigPath.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("graylogic", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer log.Close()
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	db, err := database.Open(ctx, database.Config{
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
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("device"))

	bus := eventbus.New(eventbus.Config{}, log.Component("watermill").Logger)
	bus.SetLogger(log.Component("eventbus"))
	defer func() {
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing event bus", "error", closeErr)
		}
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Notification routing.
	router := notification.NewRouter(cfg.Notifications.ResolveCacheSize)
	router.SetLogger(log.Component("notification"))
	if chErr := registerChannels(router, cfg.Notifications, mqttClient, byte(cfg.MQTT.QoS), log); chErr != nil {
		return chErr
	}
	if _, subErr := notification.LoadSubscriptions(cfg.Notifications.SubscriptionsFile, router, log.Component("notification")); subErr != nil {
		// Bad entries are skipped; the rest of the table is usable.
		log.Error("notification subscriptions loaded with errors", "error", subErr)
	}
	subscriptions := notification.NewSQLiteRepository(db.DB)
	if n, replayErr := notification.Replay(ctx, subscriptions, router, log.Component("notification")); replayErr != nil {
		log.Error("replaying stored subscriptions", "error", replayErr)
	} else if n > 0 {
		log.Info("stored subscriptions replayed", "count", n)
	}

	sender := notification.NewSender(router, registry)
	sender.SetLogger(log.Component("notification"))
	if startErr := sender.Start(ctx, bus); startErr != nil {
		return fmt.Errorf("starting notification sender: %w", startErr)
	}

	// Device persistence. The writer stays disabled until the load completes.
	writer := deviceconfig.NewWriter(cfg.Devices.ConfigFile, registry)
	writer.SetLogger(log.Component("deviceconfig"))
	if startErr := writer.Start(ctx, bus); startErr != nil {
		return fmt.Errorf("starting config writer: %w", startErr)
	}
	defer writer.Stop()

	// State history.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	history := statehistory.NewSQLiteRepository(db.DB)
	var recorder *statehistory.Recorder
	if cfg.History.Enabled {
		recOpts := statehistory.Options{
			Repository: history,
			Retention:  cfg.History.Retention(),
			Interval:   cfg.History.Interval(),
			Logger:     log.Component("statehistory"),
		}
		if influxClient != nil {
			recOpts.Points = influxClient
		}
		recorder = statehistory.NewRecorder(recOpts)
		if startErr := recorder.Start(ctx, bus); startErr != nil {
			return fmt.Errorf("starting state history: %w", startErr)
		}
		defer recorder.Stop()
	}

	if mirrorErr := mirrorEvents(ctx, bus, mqttClient, log); mirrorErr != nil {
		return mirrorErr
	}

	// Devices: load the persisted set, then subscribe, then discover.
	sensors := sensor.NewFactory(ctx, bus)
	sensors.SetLogger(log.Component("sensor"))
	transport := &mqttTransport{client: mqttClient, qos: byte(cfg.Devices.QoS)}
	disc := discovery.New(transport, registry, bus, sensors)
	disc.SetLogger(log.Component("discovery"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		if n := disc.RetryPending(); n > 0 {
			log.Info("pending devices attached", "count", n)
		}
	})

	if loadErr := loadDevices(ctx, cfg.Devices.ConfigFile, registry, bus, sensors, transport, disc, writer, log); loadErr != nil {
		return loadErr
	}

	if cfg.Devices.Discovery {
		if startErr := disc.Start(ctx); startErr != nil {
			return fmt.Errorf("starting discovery: %w", startErr)
		}
		log.Info("device discovery started", "root", sensors.RootTopic())
	} else {
		log.Info("device discovery disabled")
	}

	deps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Logger:        log.Component("api"),
		Registry:      registry,
		Router:        router,
		Subscriptions: subscriptions,
		History:       history,
		Readings:      sensors,
		Bus:           bus,
		MQTT:          mqttClient,
		Discovery:     disc,
		DB:            db.DB,
		Version:       version,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "devices", registry.Count())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic Hub stopped")
	return nil
}

// loadDevices reads the persisted device document, then attaches every loaded
// handle to the transport. Subscriptions are made only after the whole
// document has been accepted.
func loadDevices(
	ctx context.Context,
	path string,
	registry *device.Registry,
	bus *eventbus.Bus,
	sensors *sensor.Factory,
	transport discovery.Transport,
	disc *discovery.Service,
	writer *deviceconfig.Writer,
	log *logging.Logger,
) error {
	loader, err := deviceconfig.NewLoader(registry, bus, sensors)
	if err != nil {
		return fmt.Errorf("creating device loader: %w", err)
	}
	loader.SetLogger(log.Component("deviceconfig"))

	var handles []device.Handle
	n, err := loader.Load(ctx, path, func(h device.Handle) error {
		handles = append(handles, h)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	for _, h := range handles {
		if err := discovery.Subscribe(transport, h); err != nil {
			return err
		}
		disc.MarkSeen(h.Device().Identity)
	}
	// Saving must be on before discovery can register anything.
	writer.Enable()
	log.Info("devices loaded", "path", path, "devices", n)
	return nil
}

// registerChannels builds every configured notification channel.
func registerChannels(router *notification.Router, cfg config.NotificationsConfig, publisher channel.Publisher, qos byte, log *logging.Logger) error {
	chLog := log.Component("channel")
	breaker := channel.BreakerSettings{
		FailureThreshold: uint32(max(cfg.Breaker.FailureThreshold, 0)), //nolint:gosec // validated non-negative
		OpenTimeout:      cfg.Breaker.OpenTimeoutDuration(),
	}

	for _, p := range cfg.Pushover {
		ch, err := channel.NewPushover(channel.PushoverConfig{Token: p.Token, User: p.User, Breaker: breaker}, chLog.With("channel_id", p.ID))
		if err != nil {
			return fmt.Errorf("pushover channel %q: %w", p.ID, err)
		}
		router.AddChannel(p.ID, ch)
	}
	for _, p := range cfg.Pushbullet {
		ch, err := channel.NewPushbullet(channel.PushbulletConfig{Token: p.Token, Breaker: breaker}, chLog.With("channel_id", p.ID))
		if err != nil {
			return fmt.Errorf("pushbullet channel %q: %w", p.ID, err)
		}
		router.AddChannel(p.ID, ch)
	}
	for _, u := range cfg.UI {
		topic := mqtt.Topics{}.UINotification(u.ClientID)
		router.AddChannel(u.ID, channel.NewMQTT(publisher, topic, qos, chLog.With("channel_id", u.ID)))
	}
	for _, id := range cfg.Log {
		router.AddChannel(id, channel.NewLog(id, chLog))
	}

	log.Info("notification channels registered", "channels", router.ChannelIDs())
	return nil
}

// mirrorEvents republishes every device and system event on the hub's MQTT
// event tree so other services can follow the hub without the REST API.
func mirrorEvents(ctx context.Context, bus *eventbus.Bus, publisher channel.Publisher, log *logging.Logger) error {
	topics := mqtt.Topics{}
	forward := func(_ context.Context, ev event.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", ev.Kind, err)
		}
		if err := publisher.Publish(topics.HubEvent(string(ev.Kind)), payload, 0, false); err != nil {
			// The broker may be briefly unavailable; the event is not retried.
			log.Debug("event not mirrored", "kind", ev.Kind, "error", err)
		}
		return nil
	}
	for _, kind := range []event.Kind{event.KindDeviceEvent, event.KindSystemEvent} {
		if err := bus.Subscribe(ctx, kind, forward); err != nil {
			return fmt.Errorf("mirroring %s: %w", kind, err)
		}
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error
	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mqtt: %w", err))
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

// mqttTransport adapts the infrastructure MQTT client to discovery.Transport.
// The difference is the handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Discovery expects:  func(topic, payload []byte)
type mqttTransport struct {
	client *mqtt.Client
	qos    byte
}

// Subscribe implements discovery.Transport.
func (t *mqttTransport) Subscribe(filter string, handler func(topic string, payload []byte)) error {
	return t.client.Subscribe(filter, t.qos, func(topic string, payload []byte) error {
		handler(topic, payload)
		return nil
	})
}
