// Package httpapi serves the appliance's JSON API and its web page.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"labmonitor/device/internal/acquisition"
	"labmonitor/device/internal/submit"
	"labmonitor/shared/httplog"
	"labmonitor/shared/types"
)

// Recorder produces a fresh record from every sensor slot.
type Recorder interface {
	Record(ctx context.Context) (types.Record, error)
}

type Scheduler interface {
	Start()
	Stop()
	SetInterval(d time.Duration) error
	Status() acquisition.Status
}

type Options struct {
	Records   Recorder
	Scheduler Scheduler
	// Submitter forwards records on request. Nil disables forwarding.
	Submitter submit.Submitter
	StaticDir string
	Logger    *slog.Logger
}

func NewMux(o Options) *http.ServeMux {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	h := &handlers{
		records:   o.Records,
		scheduler: o.Scheduler,
		submitter: o.Submitter,
		logger:    o.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("POST /api/control", h.handleControl)
	mux.HandleFunc("GET /api/acquisition_status", h.handleAcquisitionStatus)
	if strings.TrimSpace(o.StaticDir) != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(o.StaticDir)))
	}
	return mux
}

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
