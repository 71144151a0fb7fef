// Package app wires the appliance together: settings, buses, sensor
// engine, submitters, scheduler and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"labmonitor/device/internal/acquisition"
	"labmonitor/device/internal/config"
	"labmonitor/device/internal/cputemp"
	"labmonitor/device/internal/httpapi"
	"labmonitor/device/internal/hw"
	"labmonitor/device/internal/mqtt"
	"labmonitor/device/internal/sensor"
	"labmonitor/device/internal/sensor/drivers"
	"labmonitor/device/internal/submit"
	"labmonitor/shared/settings"
)

func Run(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) error {
	st, err := loadSettings(cfg.SettingsPath, logger)
	if err != nil {
		return err
	}

	logger.Info("initializing device",
		"device_name", st.DeviceName,
		"slots", len(st.Slots),
		"http_addr", cfg.HTTPAddr,
		"settings_path", cfg.SettingsPath,
		"submit_enabled", st.SubmitEnabled,
		"acquisition_interval", st.AcquisitionInterval,
	)

	var buses drivers.Buses = hw.Offline{}
	host, err := hw.NewHost(logger)
	if err != nil {
		logger.Error("bus drivers unavailable; serving die-temperature estimates only", "error", err)
	} else {
		buses = host
		defer func() {
			if err := host.Close(); err != nil {
				logger.Error("close buses", "error", err)
			}
		}()
	}

	thermo := cputemp.New(logger, cfg.CPUTemperatureKeys...)
	reg := sensor.NewRegistry(logger, drivers.All(buses, cfg.AQI)...)
	reg.SetReadTimeout(cfg.SensorReadTimeout)

	engine := sensor.NewEngine(ctx, reg, thermo, slotConfigs(st),
		sensor.WithLogger(logger),
		sensor.WithSettleDelay(cfg.SensorSettleDelay),
	)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("halt sensors", "error", err)
		}
	}()
	if !thermo.Known() {
		logger.Warn("die temperature unavailable; estimates read 0")
	}

	records := NewAssembler(engine, st.DeviceName, version)

	sub, closeSubmitters := buildSubmitters(ctx, cfg, st, logger)
	defer closeSubmitters()

	scheduler := acquisition.New(cycle(records, sub, logger),
		acquisition.WithInterval(st.AcquisitionInterval),
		acquisition.WithLogger(logger),
	)

	mux := httpapi.NewMux(httpapi.Options{
		Records:   records,
		Scheduler: scheduler,
		Submitter: sub,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})
	srv := httpapi.NewServer(cfg.HTTPAddr, logger, mux)

	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// loadSettings reads the settings file, falling back to defaults when it
// does not exist yet. A slot with an unknown model or unusable pins is
// logged and left to the registry, which disables only that slot.
func loadSettings(path string, logger *slog.Logger) (settings.Settings, error) {
	st, err := settings.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("settings file not found; using defaults", "path", path)
		st = settings.Default()
	case err != nil:
		return settings.Settings{}, err
	}
	for _, err := range st.SlotErrors() {
		logger.Warn("sensor slot misconfigured", "path", path, "error", err)
	}
	if err := st.ValidateGeneral(); err != nil {
		return settings.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

func slotConfigs(st settings.Settings) []sensor.SlotConfig {
	out := make([]sensor.SlotConfig, 0, len(st.Slots))
	for _, s := range st.Slots {
		cfg := sensor.SlotConfig{
			Name:      s.Model,
			Model:     sensor.Model(s.Model),
			Pins:      s.Pins,
			Calibrate: s.CorrectTemp,
		}
		if s.BadPins != "" {
			cfg.Model = ""
		}
		out = append(out, cfg)
	}
	return out
}

// buildSubmitters returns the configured submitters, or nil when none is.
// The returned func releases their connections.
func buildSubmitters(ctx context.Context, cfg config.Config, st settings.Settings, logger *slog.Logger) (submit.Submitter, func()) {
	var (
		subs    submit.Multi
		closers []func()
	)

	if st.SubmitEnabled {
		h, err := submit.NewHTTP(submit.HTTPOptions{
			BaseURL:   st.SubmitURL,
			SecretKey: st.SecretKey,
			CertPath:  st.CertPath,
		}, logger)
		if err != nil {
			logger.Error("http submission disabled", "error", err)
		} else {
			subs = append(subs, h)
		}
	}

	broker, port := st.MQTTBroker, st.MQTTPort
	if cfg.MQTTBroker != "" {
		broker = cfg.MQTTBroker
	}
	if cfg.MQTTPort != 0 {
		port = cfg.MQTTPort
	}
	if broker != "" {
		c, err := mqtt.NewClient(mqtt.Options{
			Broker:   broker,
			Port:     port,
			ClientID: cfg.MQTTClientID,
			Device:   st.DeviceName,
		}, logger)
		if err != nil {
			logger.Error("mqtt publishing disabled", "error", err)
		} else {
			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.Connect(connectCtx); err != nil {
				logger.Warn("mqtt connection failed (continuing; client retries)", "error", err)
			}
			cancel()
			subs = append(subs, c)
			closers = append(closers, c.Disconnect)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(subs) {
	case 0:
		return nil, closeAll
	case 1:
		return subs[0], closeAll
	default:
		return subs, closeAll
	}
}

// cycle is one scheduled acquisition: poll, then forward when a
// submitter is configured.
func cycle(records *Assembler, sub submit.Submitter, logger *slog.Logger) acquisition.Cycle {
	return func(ctx context.Context) error {
		rec, err := records.Record(ctx)
		if err != nil {
			logger.Error("sensor read fault", "error", err)
		}
		logger.Info("scheduled acquisition", "slots", len(rec.Slots), "utc", rec.UTC)
		if sub == nil {
			return nil
		}
		return sub.Submit(ctx, rec)
	}
}
