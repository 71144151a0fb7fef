package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{App: "labmonitor-device", Version: "1.2.0", Env: "prod", Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	l.Info("slot read", "slot", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a single JSON record: %v\n%s", err, buf.String())
	}
	for k, want := range map[string]any{"app": "labmonitor-device", "version": "1.2.0", "env": "prod", "msg": "slot read"} {
		if rec[k] != want {
			t.Errorf("%s = %v; want %v", k, rec[k], want)
		}
	}
}

func TestNew_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{App: "labmonitor-server", Version: "dev", Env: "dev", Level: slog.LevelDebug, Output: &buf})
	l.Debug("listening", "addr", ":8080")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("dev output looks like JSON: %s", out)
	}
	if !strings.Contains(out, "listening") || !strings.Contains(out, "app=labmonitor-server") {
		t.Errorf("dev output = %q", out)
	}
}
