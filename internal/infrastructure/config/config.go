package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Devices       DevicesConfig       `yaml:"devices"`
	Notifications NotificationsConfig `yaml:"notifications"`
	History       HistoryConfig       `yaml:"history"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// DevicesConfig controls device persistence and discovery.
type DevicesConfig struct {
	// ConfigFile is the JSON document holding every registered device.
	ConfigFile string `yaml:"config_file"`

	// Discovery enables registration of unknown devices seen on MQTT.
	Discovery bool `yaml:"discovery"`

	// QoS is used for device state subscriptions.
	QoS int `yaml:"qos"`
}

// NotificationsConfig configures notification channels and routing.
type NotificationsConfig struct {
	// SubscriptionsFile is the YAML file of push notification subscriptions.
	SubscriptionsFile string `yaml:"subscriptions_file"`

	Pushover   []PushoverConfig   `yaml:"pushover"`
	Pushbullet []PushbulletConfig `yaml:"pushbullet"`
	UI         []UIChannelConfig  `yaml:"ui"`
	Log        []string           `yaml:"log"` // ids of log channels

	Breaker BreakerConfig `yaml:"breaker"`

	// ResolveCacheSize bounds the routing resolve cache. 0 disables it.
	ResolveCacheSize int `yaml:"resolve_cache_size"`
}

// PushoverConfig holds one Pushover destination.
type PushoverConfig struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// PushbulletConfig holds one Pushbullet account.
type PushbulletConfig struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
}

// UIChannelConfig publishes notifications to a UI client over MQTT.
type UIChannelConfig struct {
	ID       string `yaml:"id"`
	ClientID string `yaml:"client_id"`
}

// BreakerConfig configures the circuit breaker around push providers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	OpenTimeout      int `yaml:"open_timeout"` // seconds
}

// HistoryConfig controls device property history.
type HistoryConfig struct {
	Enabled              bool `yaml:"enabled"`
	RetentionDays        int  `yaml:"retention_days"`
	HousekeepingInterval int  `yaml:"housekeeping_interval"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Devices: DevicesConfig{
			ConfigFile: "./data/devices.json",
			Discovery:  true,
			QoS:        1,
		},
		Notifications: NotificationsConfig{
			SubscriptionsFile: "./configs/notifications.yaml",
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      60,
			},
			ResolveCacheSize: 1024,
		},
		History: HistoryConfig{
			Enabled:              true,
			RetentionDays:        30,
			HousekeepingInterval: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Devices
	if v := os.Getenv("GRAYLOGIC_DEVICES_CONFIG_FILE"); v != "" {
		cfg.Devices.ConfigFile = v
	}
	if v := os.Getenv("GRAYLOGIC_DEVICES_DISCOVERY"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Devices.Discovery = enabled
		}
	}

	// Notifications
	if v := os.Getenv("GRAYLOGIC_NOTIFICATIONS_SUBSCRIPTIONS_FILE"); v != "" {
		cfg.Notifications.SubscriptionsFile = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Devices.ConfigFile == "" {
		errs = append(errs, "devices.config_file is required")
	}
	if c.Devices.QoS < 0 || c.Devices.QoS > 2 {
		errs = append(errs, "devices.qos must be 0, 1, or 2")
	}

	errs = append(errs, c.Notifications.validate()...)

	if c.History.Enabled {
		if c.History.RetentionDays < 1 {
			errs = append(errs, "history.retention_days must be at least 1")
		}
		if c.History.HousekeepingInterval < 1 {
			errs = append(errs, "history.housekeeping_interval must be at least 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks channel credentials and that channel ids are unique.
func (n *NotificationsConfig) validate() []string {
	var errs []string
	seen := make(map[string]bool)
	checkID := func(section, id string) {
		if id == "" {
			errs = append(errs, fmt.Sprintf("notifications.%s: id is required", section))
			return
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("notifications.%s: duplicate channel id %q", section, id))
		}
		seen[id] = true
	}

	for _, p := range n.Pushover {
		checkID("pushover", p.ID)
		if p.Token == "" || p.User == "" {
			errs = append(errs, fmt.Sprintf("notifications.pushover %q: token and user are required", p.ID))
		}
	}
	for _, p := range n.Pushbullet {
		checkID("pushbullet", p.ID)
		if p.Token == "" {
			errs = append(errs, fmt.Sprintf("notifications.pushbullet %q: token is required", p.ID))
		}
	}
	for _, u := range n.UI {
		checkID("ui", u.ID)
		if u.ClientID == "" {
			errs = append(errs, fmt.Sprintf("notifications.ui %q: client_id is required", u.ID))
		}
	}
	for _, id := range n.Log {
		checkID("log", id)
	}

	if n.Breaker.FailureThreshold < 0 {
		errs = append(errs, "notifications.breaker.failure_threshold must not be negative")
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Retention returns the history retention period.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// Interval returns the housekeeping interval.
func (h HistoryConfig) Interval() time.Duration {
	return time.Duration(h.HousekeepingInterval) * time.Minute
}

// OpenTimeoutDuration returns the breaker open timeout.
func (b BreakerConfig) OpenTimeoutDuration() time.Duration {
	return time.Duration(b.OpenTimeout) * time.Second
}
