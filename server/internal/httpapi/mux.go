package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// NewMux returns a mux with the health check registered. mqtt may be nil
// when the MQTT ingest path is disabled.
func NewMux(db *sql.DB, mqtt ConnectionStatus, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, mqtt, logger)
	return mux
}
