package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"labmonitor/server/internal/modules/readings/repository"
)

// SubmitPath is where devices POST records; the legacy path is kept for
// devices configured against the original deployment.
const (
	SubmitPath       = "/api/submit-sensor-data"
	LegacySubmitPath = "/LabMonitorDB/api/submit-sensor-data"
)

type Ingester interface {
	Ingest(ctx context.Context, payload []byte, deviceHint string) (string, error)
}

type ReadingsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type readingsControllerImpl struct {
	repository repository.ReadingsRepository
	ingester   Ingester
	logger     *slog.Logger
	now        func() time.Time
}

func NewReadingsController(repository repository.ReadingsRepository, ingester Ingester, logger *slog.Logger) ReadingsController {
	if logger == nil {
		logger = slog.Default()
	}
	return &readingsControllerImpl{repository: repository, ingester: ingester, logger: logger, now: time.Now}
}

func (c *readingsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+SubmitPath, c.handleSubmit)
	mux.HandleFunc("POST "+LegacySubmitPath, c.handleSubmit)
	mux.HandleFunc("GET /api/v1/devices", c.handleDevices)
	mux.HandleFunc("GET /api/v1/devices/{name}/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/devices/{name}/readings", c.handleReadings)
}
