package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"labmonitor/server/internal/modules/readings/types"
	"labmonitor/tools/migrate"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Each connection to :memory: is its own database.
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

func doc(id, device string, ts time.Time) types.Document {
	return types.Document{
		ID:         id,
		DeviceName: device,
		Time:       ts,
		ReceivedAt: ts.Add(time.Second),
		Body:       []byte(fmt.Sprintf(`{"device_name":%q}`, device)),
	}
}

func TestGetDevices_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	devices, err := repo.GetDevices(context.Background())
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("GetDevices: got %d devices, want 0", len(devices))
	}
}

func TestInsertDocument_Validation(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		doc     types.Document
		wantErr bool
	}{
		{"ok", doc("a", "bench", base), false},
		{"missing id", doc("", "bench", base), true},
		{"missing device", doc("b", "", base), true},
		{"duplicate id", doc("a", "bench", base), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.InsertDocument(context.Background(), tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertDocument() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDevices_Summaries(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range []types.Document{
		doc("1", "bench_2", base),
		doc("2", "bench_2", base.Add(time.Minute)),
		doc("3", "attic", base.Add(-time.Hour)),
	} {
		if err := repo.InsertDocument(ctx, d); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	devices, err := repo.GetDevices(ctx)
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("GetDevices: got %d devices, want 2", len(devices))
	}
	if devices[0].Name != "attic" || devices[0].Documents != 1 {
		t.Errorf("devices[0] = %+v; want attic with 1 document", devices[0])
	}
	if devices[1].Name != "bench_2" || devices[1].Documents != 2 || !devices[1].LastSeen.Equal(base.Add(time.Minute)) {
		t.Errorf("devices[1] = %+v; want bench_2 with 2 documents last seen %v", devices[1], base.Add(time.Minute))
	}
}

func TestGetLatestDocuments_NewestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// Sub-second offsets check that stored order is time order.
	times := []time.Time{base, base.Add(500 * time.Millisecond), base.Add(time.Second)}
	for i, ts := range times {
		if err := repo.InsertDocument(ctx, doc(fmt.Sprint(i), "bench", ts)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	latest, err := repo.GetLatestDocuments(ctx, "bench", 2)
	if err != nil {
		t.Fatalf("GetLatestDocuments: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("GetLatestDocuments: got %d, want 2", len(latest))
	}
	if !latest[0].Time.Equal(times[2]) || !latest[1].Time.Equal(times[1]) {
		t.Errorf("order = %v, %v; want %v, %v", latest[0].Time, latest[1].Time, times[2], times[1])
	}
	if string(latest[0].Body) != `{"device_name":"bench"}` {
		t.Errorf("body = %s", latest[0].Body)
	}
	if !latest[0].ReceivedAt.Equal(times[2].Add(time.Second)) {
		t.Errorf("receivedAt = %v; want %v", latest[0].ReceivedAt, times[2].Add(time.Second))
	}

	other, err := repo.GetLatestDocuments(ctx, "nobody", 10)
	if err != nil {
		t.Fatalf("GetLatestDocuments(nobody): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("GetLatestDocuments(nobody) = %d documents; want 0", len(other))
	}
}

func TestGetDocuments_Range(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := repo.InsertDocument(ctx, doc(fmt.Sprint(i), "bench", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := repo.InsertDocument(ctx, doc("other", "attic", base.Add(time.Hour))); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	tests := []struct {
		name      string
		from, to  time.Time
		limit     int
		wantFirst time.Time
		wantN     int
	}{
		{"open range", time.Time{}, time.Time{}, 100, base, 5},
		{"from only", base.Add(2 * time.Hour), time.Time{}, 100, base.Add(2 * time.Hour), 3},
		{"to only", time.Time{}, base.Add(time.Hour), 100, base, 2},
		{"closed range", base.Add(time.Hour), base.Add(3 * time.Hour), 100, base.Add(time.Hour), 3},
		{"limit", time.Time{}, time.Time{}, 2, base, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := repo.GetDocuments(ctx, "bench", tt.from, tt.to, tt.limit)
			if err != nil {
				t.Fatalf("GetDocuments: %v", err)
			}
			if len(docs) != tt.wantN {
				t.Fatalf("GetDocuments: got %d, want %d", len(docs), tt.wantN)
			}
			if !docs[0].Time.Equal(tt.wantFirst) {
				t.Errorf("first = %v; want %v", docs[0].Time, tt.wantFirst)
			}
			for i := 1; i < len(docs); i++ {
				if docs[i].Time.Before(docs[i-1].Time) {
					t.Errorf("documents not ascending at %d", i)
				}
			}
		})
	}
}
