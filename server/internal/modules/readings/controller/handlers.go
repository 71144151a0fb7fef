package controller

import (
	"errors"
	"io"
	"net/http"

	"labmonitor/server/internal/modules/readings/service"
	"labmonitor/shared/httpjson"
)

const maxSubmitBytes = 1 << 20

func (c *readingsControllerImpl) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !httpjson.IsJSON(r) {
		httpjson.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type. Must be application/json.")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpjson.WriteError(w, http.StatusRequestEntityTooLarge, "Payload too large.")
			return
		}
		httpjson.WriteError(w, http.StatusBadRequest, "Could not read request body.")
		return
	}

	id, err := c.ingester.Ingest(r.Context(), payload, "")
	var missing *service.MissingKeysError
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidDocument):
		httpjson.WriteError(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	case errors.As(err, &missing):
		httpjson.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":   http.StatusText(http.StatusBadRequest),
			"message": "Missing required fields.",
			"missing": missing.Missing,
		})
		return
	default:
		c.logger.Error("submit: store document failed", "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "Failed to save data.")
		return
	}

	c.logger.Info("record received", "id", id, "remote", r.RemoteAddr)
	httpjson.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Data received and saved successfully",
		"id":      id,
	})
}

func (c *readingsControllerImpl) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := c.repository.GetDevices(r.Context())
	if err != nil {
		c.logger.Error("devices: query failed", "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "failed to load devices")
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, devices)
}

func (c *readingsControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing device name")
		return
	}

	limit, err := parseLatestQuery(r)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.repository.GetLatestDocuments(r.Context(), name, limit)
	if err != nil {
		c.logger.Error("latest: query failed", "device", name, "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, latest)
}

func (c *readingsControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing device name")
		return
	}

	from, to, limit, err := parseReadingsQuery(r, c.now())
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := c.repository.GetDocuments(r.Context(), name, from, to, limit)
	if err != nil {
		c.logger.Error("readings: query failed", "device", name, "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, docs)
}
