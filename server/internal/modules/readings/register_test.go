package readings

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"labmonitor/tools/migrate"
)

type captureSubscriber struct {
	handler func(topic string, payload []byte) error
}

func (c *captureSubscriber) SetMessageHandler(h func(topic string, payload []byte) error) {
	c.handler = h
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRegisterFeature_SubmitThenQuery(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	sub := &captureSubscriber{}
	RegisterFeature(mux, db, sub, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	record := `{"version":"0.8.2","ip":"10.0.0.7","UTC":1714564800000000000,"device_name":"bench_2","sens1_Temp":"21.4","sens1_type":"sensor"}`
	req := httptest.NewRequest(http.MethodPost, "/LabMonitorDB/api/submit-sensor-data", strings.NewReader(record))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d; body %s", rec.Code, rec.Body.String())
	}

	if sub.handler == nil {
		t.Fatal("MQTT handler not registered")
	}
	mqttRecord := `{"version":"0.8.2","ip":"10.0.0.8","UTC":1714564900000000000,"sens1_Temp":"--","sens1_type":"cpu"}`
	if err := sub.handler("labmonitor/attic/readings", []byte(mqttRecord)); err != nil {
		t.Fatalf("mqtt handler: %v", err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	var devices []struct {
		Name      string `json:"name"`
		Documents int    `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	if len(devices) != 2 || devices[0].Name != "attic" || devices[1].Name != "bench_2" {
		t.Fatalf("devices = %+v; want attic and bench_2", devices)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/bench_2/latest?limit=1", nil))
	var docs []struct {
		Time string         `json:"time"`
		Body map[string]any `json:"body"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("latest = %d documents; want 1", len(docs))
	}
	if docs[0].Time != "2024-05-01T12:00:00Z" {
		t.Errorf("time = %q", docs[0].Time)
	}
	if docs[0].Body["datetime_utc_device"] != "2024-05-01T12:00:00Z" || docs[0].Body["sens1_Temp"] != "21.4" {
		t.Errorf("body = %v", docs[0].Body)
	}
}
