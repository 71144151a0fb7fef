package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"labmonitor/server/internal/modules/readings/types"
)

//go:embed sql/insert-document.sql
var insertDocumentSQL string

//go:embed sql/get-devices.sql
var getDevicesSQL string

//go:embed sql/get-latest-documents.sql
var getLatestDocumentsSQL string

//go:embed sql/get-documents.sql
var getDocumentsSQL string

// Timestamps are stored fixed-width so that text order is time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type ReadingsRepository interface {
	InsertDocument(ctx context.Context, doc types.Document) error
	GetDevices(ctx context.Context) ([]types.Device, error)
	GetLatestDocuments(ctx context.Context, device string, limit int) ([]types.Document, error)
	GetDocuments(ctx context.Context, device string, from, to time.Time, limit int) ([]types.Document, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReadingsRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertDocument(ctx context.Context, doc types.Document) error {
	if doc.ID == "" || doc.DeviceName == "" {
		return fmt.Errorf("insert document: id and device name are required")
	}
	_, err := r.db.ExecContext(ctx, insertDocumentSQL,
		doc.ID,
		doc.DeviceName,
		formatTS(doc.Time),
		nullableTS(doc.ClientTime),
		formatTS(doc.ReceivedAt),
		string(doc.Body),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetDevices(ctx context.Context) ([]types.Device, error) {
	rows, err := r.db.QueryContext(ctx, getDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close devices rows", "error", err)
		}
	}()
	out := []types.Device{}
	for rows.Next() {
		var d types.Device
		var lastSeen string
		if err := rows.Scan(&d.Name, &lastSeen, &d.Documents); err != nil {
			return nil, err
		}
		if d.LastSeen, err = parseTS(lastSeen); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetLatestDocuments(ctx context.Context, device string, limit int) ([]types.Document, error) {
	rows, err := r.db.QueryContext(ctx, getLatestDocumentsSQL, device, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest documents rows", "error", err)
		}
	}()
	return scanDocuments(rows)
}

// GetDocuments returns device's documents in [from, to] oldest first. A zero
// bound is open.
func (r *repositoryImpl) GetDocuments(ctx context.Context, device string, from, to time.Time, limit int) ([]types.Document, error) {
	rows, err := r.db.QueryContext(ctx, getDocumentsSQL, device, nullableTS(from), nullableTS(to), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close documents rows", "error", err)
		}
	}()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]types.Document, error) {
	out := []types.Document{}
	for rows.Next() {
		var doc types.Document
		var ts, received, body string
		if err := rows.Scan(&doc.ID, &doc.DeviceName, &ts, &received, &body); err != nil {
			return nil, err
		}
		var err error
		if doc.Time, err = parseTS(ts); err != nil {
			return nil, err
		}
		if doc.ReceivedAt, err = parseTS(received); err != nil {
			return nil, err
		}
		doc.Body = []byte(body)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func nullableTS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTS(t)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
