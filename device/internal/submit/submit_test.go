package submit

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labmonitor/shared/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord() types.Record {
	return types.Record{
		DeviceName: "lab-1",
		IP:         "10.0.0.7",
		Version:    "2025.01.1",
		LibVersion: "2025.01.1",
		UTC:        1_700_000_000_000_000_000,
		Slots:      []types.SlotFields{{Name: "BME280", Type: "sensor", Temp: "21.4"}},
	}
}

func TestHTTP_Submit(t *testing.T) {
	var (
		gotPath, gotAuth, gotType string
		gotBody                   map[string]any
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(ts.Close)

	h, err := NewHTTP(HTTPOptions{BaseURL: ts.URL + "/", SecretKey: "s3cret"}, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	h.now = func() time.Time { return time.UnixMilli(1_700_000_000_123) }

	if err := h.Submit(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotPath != SubmitPath {
		t.Errorf("path = %q; want %q", gotPath, SubmitPath)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody["sens1_Temp"] != "21.4" || gotBody["device_name"] != "lab-1" {
		t.Errorf("body = %v", gotBody)
	}
	if gotBody[types.KeyClientSubmissionTime] != float64(1_700_000_000_123) {
		t.Errorf("client_submission_time = %v", gotBody[types.KeyClientSubmissionTime])
	}
}

func TestHTTP_SubmitStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"created", http.StatusCreated, false},
		{"accepted is not success", http.StatusAccepted, true},
		{"bad request", http.StatusBadRequest, true},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "" {
					t.Errorf("Authorization sent without a secret")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			t.Cleanup(ts.Close)

			h, err := NewHTTP(HTTPOptions{BaseURL: ts.URL}, discardLogger())
			if err != nil {
				t.Fatalf("NewHTTP: %v", err)
			}
			err = h.Submit(context.Background(), sampleRecord())
			if tt.wantErr != (err != nil) {
				t.Fatalf("Submit() error = %v; wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrRejected) {
				t.Errorf("error = %v; want ErrRejected", err)
			}
		})
	}
}

func TestHTTP_CustomRootCA(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw}
	if err := os.WriteFile(certPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}

	trusted, err := NewHTTP(HTTPOptions{BaseURL: ts.URL, CertPath: certPath}, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if err := trusted.Submit(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Submit with custom CA: %v", err)
	}

	untrusted, err := NewHTTP(HTTPOptions{BaseURL: ts.URL, CertPath: filepath.Join(dir, "missing.pem")}, discardLogger())
	if err != nil {
		t.Fatalf("NewHTTP with missing CA: %v", err)
	}
	if err := untrusted.Submit(context.Background(), sampleRecord()); err == nil {
		t.Fatal("Submit trusted a self-signed server without its CA")
	}
}

func TestNewHTTP_EmptyURL(t *testing.T) {
	if _, err := NewHTTP(HTTPOptions{BaseURL: "  "}, discardLogger()); err == nil {
		t.Fatal("NewHTTP accepted an empty URL")
	}
}

type fakeSubmitter struct {
	name string
	err  error
	got  []types.Record
}

func (f *fakeSubmitter) Submit(_ context.Context, rec types.Record) error {
	f.got = append(f.got, rec)
	return f.err
}

func (f *fakeSubmitter) String() string { return f.name }

func TestMulti_Submit(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeSubmitter{name: "a"}
	b := &fakeSubmitter{name: "b", err: boom}
	c := &fakeSubmitter{name: "c"}

	err := Multi{a, b, c}.Submit(context.Background(), sampleRecord())
	if !errors.Is(err, boom) {
		t.Fatalf("Multi error = %v; want boom", err)
	}
	if len(a.got) != 1 || len(c.got) != 1 {
		t.Errorf("a=%d c=%d deliveries; want 1 each", len(a.got), len(c.got))
	}
	if err := (Multi{}).Submit(context.Background(), sampleRecord()); err != nil {
		t.Errorf("empty Multi error = %v", err)
	}
}
