// Package readings stores device records and serves them back per device.
package readings

import (
	"database/sql"
	"log/slog"
	"net/http"

	"labmonitor/server/internal/modules/readings/controller"
	"labmonitor/server/internal/modules/readings/repository"
	"labmonitor/server/internal/modules/readings/service"
)

// RegisterFeature wires the readings routes into mux and, when subscriber is
// non-nil, the MQTT ingest path. mirror may be nil.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, subscriber service.MQTTSubscriber, mirror service.Mirror, logger *slog.Logger) {
	readingsRepository := repository.NewRepository(db)
	readingsService := service.NewService(readingsRepository, mirror, logger)
	readingsController := controller.NewReadingsController(readingsRepository, readingsService, logger)
	readingsController.RegisterRoutes(mux)
	if subscriber != nil {
		readingsService.Register(subscriber)
	}
}
