package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
devices:
  config_file: "/tmp/devices.json"
  discovery: false
notifications:
  subscriptions_file: "/tmp/notifications.yaml"
  pushover:
    - id: phoneA
      token: app-token
      user: user-key
  pushbullet:
    - id: tablet
      token: pb-token
  ui:
    - id: panel
      client_id: panel-1
  log: [dev]
history:
  retention_days: 7
`
	cfg, err := Load(writeConfigFile(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Devices.ConfigFile != "/tmp/devices.json" || cfg.Devices.Discovery {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
	if len(cfg.Notifications.Pushover) != 1 || cfg.Notifications.Pushover[0].User != "user-key" {
		t.Errorf("Notifications.Pushover = %+v", cfg.Notifications.Pushover)
	}
	if len(cfg.Notifications.UI) != 1 || cfg.Notifications.UI[0].ClientID != "panel-1" {
		t.Errorf("Notifications.UI = %+v", cfg.Notifications.UI)
	}
	if cfg.History.Retention() != 7*24*time.Hour {
		t.Errorf("History.Retention() = %v, want 168h", cfg.History.Retention())
	}
	// Unset values keep their defaults.
	if cfg.Notifications.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d, want default 5", cfg.Notifications.Breaker.FailureThreshold)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
`
	_, err := Load(writeConfigFile(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"missing devices file", func(c *Config) { c.Devices.ConfigFile = "" }, "devices.config_file"},
		{"invalid device QoS", func(c *Config) { c.Devices.QoS = -1 }, "devices.qos"},
		{"pushover without user", func(c *Config) {
			c.Notifications.Pushover = []PushoverConfig{{ID: "p", Token: "t"}}
		}, "token and user"},
		{"pushbullet without token", func(c *Config) {
			c.Notifications.Pushbullet = []PushbulletConfig{{ID: "p"}}
		}, "token is required"},
		{"ui without client", func(c *Config) {
			c.Notifications.UI = []UIChannelConfig{{ID: "panel"}}
		}, "client_id"},
		{"duplicate channel id", func(c *Config) {
			c.Notifications.Pushbullet = []PushbulletConfig{{ID: "dup", Token: "t"}}
			c.Notifications.Log = []string{"dup"}
		}, "duplicate channel id"},
		{"channel without id", func(c *Config) { c.Notifications.Log = []string{""} }, "id is required"},
		{"history retention", func(c *Config) { c.History.RetentionDays = 0 }, "history.retention_days"},
		{"history disabled ignores retention", func(c *Config) {
			c.History.Enabled = false
			c.History.RetentionDays = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "; ") {
		t.Errorf("Validate() error = %v, want both errors joined", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_API_PORT", "9090")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_DEVICES_CONFIG_FILE", "/custom/devices.json")
	t.Setenv("GRAYLOGIC_DEVICES_DISCOVERY", "false")
	t.Setenv("GRAYLOGIC_NOTIFICATIONS_SUBSCRIPTIONS_FILE", "/custom/notifications.yaml")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9090},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Devices.ConfigFile", cfg.Devices.ConfigFile, "/custom/devices.json"},
		{"Devices.Discovery", cfg.Devices.Discovery, false},
		{"Notifications.SubscriptionsFile", cfg.Notifications.SubscriptionsFile, "/custom/notifications.yaml"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidNumberIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_API_PORT", "not-a-port")
	applyEnvOverrides(cfg)
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if !cfg.Devices.Discovery {
		t.Error("defaultConfig should enable discovery")
	}
	if cfg.Notifications.ResolveCacheSize <= 0 {
		t.Error("defaultConfig should enable the resolve cache")
	}
}
