package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"labmonitor/shared/httpjson"
)

// ConnectionStatus reports whether the MQTT ingest path is up.
type ConnectionStatus interface {
	IsConnected() bool
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	mqtt   ConnectionStatus
	logger *slog.Logger
}

func NewHealthchecker(db *sql.DB, mqtt ConnectionStatus, logger *slog.Logger) healthchecker {
	return &healthcheckerImpl{db: db, mqtt: mqtt, logger: logger}
}

// handleHealthz fails only on the database; MQTT is reported but optional.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		httpjson.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
		return
	}
	mqtt := "disabled"
	if h.mqtt != nil {
		mqtt = "disconnected"
		if h.mqtt.IsConnected() {
			mqtt = "connected"
		}
	}
	httpjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "mqtt": mqtt})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, mqtt ConnectionStatus, logger *slog.Logger) {
	healthchecker := NewHealthchecker(db, mqtt, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
