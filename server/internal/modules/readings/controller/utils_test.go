package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func Test_parseReadingsQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantFrom  time.Time
		wantTo    time.Time
		wantLimit int
		wantErr   string
	}{
		{name: "no params returns defaults", query: "", wantLimit: 100},
		{name: "valid from only", query: "from=2025-01-01T00:00:00Z", wantFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wantLimit: 100},
		{name: "valid to only", query: "to=2025-12-31T23:59:59Z", wantTo: time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), wantLimit: 100},
		{
			name:      "valid from and to",
			query:     "from=2025-01-01T00:00:00Z&to=2025-01-31T12:00:00Z",
			wantFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantTo:    time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC),
			wantLimit: 100,
		},
		{name: "range sets from", query: "range=6h", wantFrom: testNow.Add(-6 * time.Hour), wantLimit: 100},
		{name: "range with to", query: "range=7d&to=2025-03-01T00:00:00Z", wantFrom: testNow.Add(-7 * 24 * time.Hour), wantTo: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), wantLimit: 100},
		{name: "valid limit", query: "limit=50", wantLimit: 50},
		{name: "limit 1 allowed", query: "limit=1", wantLimit: 1},
		{name: "limit 1000 allowed", query: "limit=1000", wantLimit: 1000},
		{name: "invalid from", query: "from=not-a-date", wantErr: "invalid 'from' (expected RFC3339)"},
		{name: "invalid to", query: "to=bad", wantErr: "invalid 'to' (expected RFC3339)"},
		{name: "from after to", query: "from=2025-02-01T00:00:00Z&to=2025-01-01T00:00:00Z", wantErr: "'from' must be <= 'to'"},
		{name: "unknown range", query: "range=30d", wantErr: "invalid 'range' (allowed: 1h, 6h, 24h, 7d)"},
		{name: "range and from", query: "range=1h&from=2025-01-01T00:00:00Z", wantErr: "'range' and 'from' are mutually exclusive"},
		{name: "range after to", query: "range=1h&to=2025-01-01T00:00:00Z", wantErr: "'from' must be <= 'to'"},
		{name: "non-integer limit", query: "limit=abc", wantErr: "invalid 'limit' (expected integer)"},
		{name: "limit zero", query: "limit=0", wantErr: "'limit' must be > 0"},
		{name: "limit negative", query: "limit=-5", wantErr: "'limit' must be > 0"},
		{name: "limit over 1000", query: "limit=1001", wantErr: "'limit' must be <= 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readings?"+tt.query, nil)
			from, to, limit, err := parseReadingsQuery(req, testNow)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("err = %v; want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReadingsQuery() err = %v; want nil", err)
			}
			if !from.Equal(tt.wantFrom) || !to.Equal(tt.wantTo) {
				t.Errorf("from=%v to=%v; want from=%v to=%v", from, to, tt.wantFrom, tt.wantTo)
			}
			if limit != tt.wantLimit {
				t.Errorf("limit = %d; want %d", limit, tt.wantLimit)
			}
		})
	}
}

func Test_parseLatestQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 100, false},
		{"limit=50", 50, false},
		{"limit=1000", 1000, false},
		{"limit=abc", 0, true},
		{"limit=0", 0, true},
		{"limit=1001", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/latest?"+tt.query, nil)
			got, err := parseLatestQuery(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLatestQuery() err = %v; wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("limit = %d; want %d", got, tt.want)
			}
		})
	}
}
