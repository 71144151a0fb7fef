package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"labmonitor/device/internal/acquisition"
	"labmonitor/device/internal/submit"
	"labmonitor/shared/httpjson"
)

const maxControlBody = 1 << 12

type handlers struct {
	records   Recorder
	scheduler Scheduler
	submitter submit.Submitter
	logger    *slog.Logger
}

type controlRequest struct {
	Command string `json:"command"`
	// Interval is in seconds. Non-numeric values are ignored.
	Interval any `json:"interval"`
}

type controlResponse struct {
	Success  bool    `json:"success"`
	Status   string  `json:"status,omitempty"`
	Interval float64 `json:"interval,omitempty"`
	Message  string  `json:"message,omitempty"`
}

type acquisitionStatus struct {
	Status   string  `json:"status"`
	Interval float64 `json:"interval"`
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reads every slot and returns the flat record. With
// submit=true (or the older submitMongo=true) the record is also forwarded;
// forwarding failures are logged and do not change the response.
func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Record(r.Context())
	if err != nil {
		h.logger.Error("sensor read fault", "error", err)
	}

	if wantsSubmit(r) {
		if h.submitter == nil {
			h.logger.Debug("submission requested but disabled")
		} else if err := h.submitter.Submit(r.Context(), rec); err != nil {
			h.logger.Warn("record submission failed", "submitter", h.submitter.String(), "error", err)
		}
	}

	httpjson.WriteJSON(w, http.StatusOK, rec)
}

func (h *handlers) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxControlBody))
	if err := dec.Decode(&req); err != nil {
		httpjson.WriteJSON(w, http.StatusBadRequest, controlResponse{Message: "Invalid JSON body."})
		return
	}

	command := strings.ToLower(strings.TrimSpace(req.Command))
	if command != "start" && command != "stop" {
		httpjson.WriteJSON(w, http.StatusBadRequest, controlResponse{
			Message: "Invalid command. Use 'start' or 'stop'.",
		})
		return
	}

	if secs, ok := req.Interval.(float64); ok && secs >= acquisition.MinInterval.Seconds() {
		if err := h.scheduler.SetInterval(time.Duration(secs * float64(time.Second))); err != nil {
			h.logger.Warn("interval rejected", "interval", secs, "error", err)
		}
	}

	if command == "start" {
		h.scheduler.Start()
	} else {
		h.scheduler.Stop()
	}

	st := h.scheduler.Status()
	httpjson.WriteJSON(w, http.StatusOK, controlResponse{
		Success:  true,
		Status:   string(st.State),
		Interval: st.Interval.Seconds(),
	})
}

func (h *handlers) handleAcquisitionStatus(w http.ResponseWriter, r *http.Request) {
	st := h.scheduler.Status()
	httpjson.WriteJSON(w, http.StatusOK, acquisitionStatus{
		Status:   string(st.State),
		Interval: st.Interval.Seconds(),
	})
}

func wantsSubmit(r *http.Request) bool {
	q := r.URL.Query()
	for _, key := range []string{"submit", "submitMongo"} {
		if strings.EqualFold(q.Get(key), "true") {
			return true
		}
	}
	return false
}
