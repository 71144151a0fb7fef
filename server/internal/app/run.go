package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"labmonitor/server/internal/broker"
	"labmonitor/server/internal/config"
	db "labmonitor/server/internal/db"
	httpapi "labmonitor/server/internal/httpapi"
	"labmonitor/server/internal/influx"
	"labmonitor/server/internal/modules/readings"
	"labmonitor/server/internal/modules/readings/service"
	"labmonitor/server/internal/mqtt"
	"labmonitor/tools/migrate"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttListenAddr", cfg.MQTTListenAddr,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"influxURL", cfg.InfluxURL,
		"influxBucket", cfg.InfluxBucket,
	)
	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}

	if err := db.Check(ctx, dbConn); err != nil {
		return err
	}
	logger.Info("database connection successful")

	var local *broker.Broker
	if cfg.MQTTListenAddr != "" {
		local, err = broker.Start(cfg.MQTTListenAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := local.Close(); err != nil {
				logger.Error("mqtt broker close", "error", err)
			}
		}()
	}

	var (
		subscriber *mqtt.Subscriber
		mqttStatus httpapi.ConnectionStatus
		mqttIngest service.MQTTSubscriber
	)
	if mqttCfg := subscriberConfig(cfg, local); mqttCfg.MQTTBroker != "" {
		subscriber, err = mqtt.NewSubscriber(mqttCfg, logger)
		if err != nil {
			return err
		}
		mqttStatus, mqttIngest = subscriber, subscriber
	}

	var mirror service.Mirror
	if cfg.InfluxURL != "" {
		m, err := influx.New(cfg)
		if err != nil {
			return err
		}
		defer m.Close()
		mirror = m
	}

	// The handler must be set before Connect: the subscription is made as
	// soon as the connection is up.
	mux := httpapi.NewMux(dbConn, mqttStatus, logger)
	readings.RegisterFeature(mux, dbConn, mqttIngest, mirror, logger)

	if subscriber != nil {
		// A short timeout keeps startup from blocking when the broker is down.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, logger, mux)

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

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

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

// subscriberConfig points the subscriber at the in-process broker when no
// external broker is configured.
func subscriberConfig(cfg config.Config, local *broker.Broker) config.Config {
	if cfg.MQTTBroker == "" && local != nil {
		cfg.MQTTBroker, cfg.MQTTPort = local.Endpoint()
	}
	return cfg
}
