package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesOnce(t *testing.T) {
	db := openMemDB(t)

	ctx := context.Background()

	n, err := Run(ctx, db, nil)
	if err != nil || n != 1 {
		t.Fatalf("first Run = %d, %v; want 1, nil", n, err)
	}
	n, err = Run(ctx, db, nil)
	if err != nil || n != 0 {
		t.Fatalf("second Run = %d, %v; want 0, nil", n, err)
	}

	all, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(all) != 1 || !all[0].Applied || all[0].AppliedAt == "" || all[0].Name != "documents" {
		t.Errorf("Status = %+v", all)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = '0001'").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("0001 recorded %d times; want 1", n)
	}

	if _, err := db.Exec(
		"INSERT INTO documents (id, device_name, ts, body) VALUES ('a', 'lab', '2024-05-01T00:00:00.000000000Z', '{}')",
	); err != nil {
		t.Fatalf("insert into documents: %v", err)
	}
	var receivedAt string
	if err := db.QueryRow("SELECT received_at FROM documents WHERE id = 'a'").Scan(&receivedAt); err != nil {
		t.Fatalf("select: %v", err)
	}
	if receivedAt == "" {
		t.Errorf("received_at default not applied")
	}
}

func TestStatus_PendingOnFreshDB(t *testing.T) {
	all, err := Status(context.Background(), openMemDB(t))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, m := range all {
		if m.Applied {
			t.Errorf("%s applied on a fresh db", m.filename())
		}
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"0001_documents.sql", "0001", "documents", true},
		{"0012_add_index.sql", "0012", "add_index", true},
		{"1_short.sql", "", "", false},
		{"0001_documents.txt", "", "", false},
		{"README.md", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.in)
			if v != tt.wantVersion || n != tt.wantName || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v; want %q, %q, %v",
					tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
