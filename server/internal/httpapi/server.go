package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"labmonitor/shared/httplog"
)

func NewServer(addr string, logger *slog.Logger, mux *http.ServeMux) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           httplog.Middleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
