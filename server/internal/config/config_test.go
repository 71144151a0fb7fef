package config

import (
	"log/slog"
	"testing"
	"time"

	"labmonitor/shared/types"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR",
	"DB_DRIVER", "DB_DSN", "SQLITE_PATH", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"MQTT_LISTEN_ADDR", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC",
	"INFLUX_URL", "INFLUX_TOKEN", "INFLUX_ORG", "INFLUX_BUCKET",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.SQLiteDriver != "sqlite3" || got.SQLitePath != "../dev/sqlite/app.db" {
		t.Errorf("sqlite = %q %q", got.SQLiteDriver, got.SQLitePath)
	}
	if got.SQLiteMaxOpenConns != 1 || got.SQLiteMaxIdleConns != 1 || got.SQLiteConnMaxLifetime != 0 {
		t.Errorf("pool = %d/%d/%v", got.SQLiteMaxOpenConns, got.SQLiteMaxIdleConns, got.SQLiteConnMaxLifetime)
	}
	if got.MQTTBroker != "" || got.MQTTPort != 1883 || got.MQTTTopic != types.ReadingsTopicFilter {
		t.Errorf("mqtt = %q:%d %q", got.MQTTBroker, got.MQTTPort, got.MQTTTopic)
	}
	if got.InfluxURL != "" || got.InfluxBucket != "labmonitor" {
		t.Errorf("influx = %q %q", got.InfluxURL, got.InfluxBucket)
	}
}

func TestLoadFromEnv_AppEnv_Valid(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
		want   string
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "app env", env: map[string]string{"APP_ENV": "staging"}},
		{name: "uppercase app env", env: map[string]string{"APP_ENV": "DEV"}},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "max open conns", env: map[string]string{"DB_MAX_OPEN_CONNS": "many"}},
		{name: "lifetime", env: map[string]string{"DB_CONN_MAX_LIFETIME": "forever"}},
		{name: "mqtt port text", env: map[string]string{"MQTT_PORT": "mqtt"}},
		{name: "mqtt port range", env: map[string]string{"MQTT_PORT": "70000"}},
		{name: "influx without org", env: map[string]string{"INFLUX_URL": "http://influx:8086"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", "  :9090  ")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("MQTT_LISTEN_ADDR", ":1883")
	t.Setenv("MQTT_BROKER", "broker")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("INFLUX_URL", "http://influx:8086")
	t.Setenv("INFLUX_ORG", "lab")
	t.Setenv("INFLUX_TOKEN", "tok")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.HTTPAddr != ":9090" || got.SQLiteConnMaxLifetime != 5*time.Minute {
		t.Errorf("got %+v", got)
	}
	if got.MQTTBroker != "broker" || got.MQTTPort != 8883 || got.MQTTListenAddr != ":1883" {
		t.Errorf("mqtt = %q:%d listen %q", got.MQTTBroker, got.MQTTPort, got.MQTTListenAddr)
	}
	if got.InfluxURL != "http://influx:8086" || got.InfluxOrg != "lab" || got.InfluxToken != "tok" {
		t.Errorf("influx = %+v", got)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
