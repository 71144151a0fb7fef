package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"labmonitor/device/internal/sensor/calib"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir is the absolute path of the dashboard assets served at /.
	StaticDir string
	// SettingsPath is the flat TOML settings file (slots, submission).
	SettingsPath string

	SensorReadTimeout  time.Duration
	SensorSettleDelay  time.Duration
	CPUTemperatureKeys []string

	// AQI starts from calib.DefaultAQIParams; the resistance endpoints are
	// per-sensor calibration and can be set from the environment.
	AQI calib.AQIParams

	// MQTTBroker and MQTTPort override the settings file when set.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":80"
	}

	staticDir := strings.TrimSpace(os.Getenv("STATIC_DIR"))
	if staticDir == "" {
		staticDir = "static"
	}
	staticDir, err = filepath.Abs(staticDir)
	if err != nil {
		return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
	}

	settingsPath := strings.TrimSpace(os.Getenv("SETTINGS_PATH"))
	if settingsPath == "" {
		settingsPath = "settings.toml"
	}

	readTimeout, err := durationEnv("SENSOR_READ_TIMEOUT", "2s")
	if err != nil {
		return Config{}, err
	}
	if readTimeout <= 0 {
		return Config{}, fmt.Errorf("SENSOR_READ_TIMEOUT must be positive, got %v", readTimeout)
	}
	settleDelay, err := durationEnv("SENSOR_SETTLE_DELAY", "1s")
	if err != nil {
		return Config{}, err
	}
	if settleDelay < 0 {
		return Config{}, fmt.Errorf("SENSOR_SETTLE_DELAY must not be negative, got %v", settleDelay)
	}

	var cpuKeys []string
	for _, k := range strings.Split(os.Getenv("CPU_TEMP_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cpuKeys = append(cpuKeys, k)
		}
	}

	aqi := calib.DefaultAQIParams
	for key, dst := range map[string]*float64{
		"AQI_SATURATION_OHM":   &aqi.SaturationOhm,
		"AQI_BASELINE_OHM":     &aqi.BaselineOhm,
		"AQI_HUMIDITY_OPTIMUM": &aqi.HumidityOptimum,
	} {
		if err := floatEnv(key, dst); err != nil {
			return Config{}, err
		}
	}
	if err := aqi.Validate(); err != nil {
		return Config{}, fmt.Errorf("AQI parameters: %w", err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPort := 0
	if mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT")); mqttPortStr != "" {
		mqttPort, err = strconv.Atoi(mqttPortStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
		}
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		host, _ := os.Hostname()
		mqttClientID = "labmonitor-device-" + host
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		StaticDir:          staticDir,
		SettingsPath:       settingsPath,
		SensorReadTimeout:  readTimeout,
		SensorSettleDelay:  settleDelay,
		CPUTemperatureKeys: cpuKeys,
		AQI:                aqi,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
	}, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// floatEnv overwrites *dst when key is set.
func floatEnv(key string, dst *float64) error {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	*dst = v
	return nil
}
