package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"labmonitor/server/internal/modules/readings/repository"
	"labmonitor/server/internal/modules/readings/types"
	shared "labmonitor/shared/types"
)

// Keys the service adds to every stored body.
const (
	KeyDeviceTime = "datetime_utc_device"
	KeyClientTime = "datetime_utc_client"
)

// UnknownDevice names documents that carry no device_name and arrive
// without a topic hint.
const UnknownDevice = "unknown"

var ErrInvalidDocument = errors.New("invalid document")

// MissingKeysError reports required record keys absent from a submission.
type MissingKeysError struct {
	Missing []string
}

func (e *MissingKeysError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Mirror receives each stored document together with its decoded fields.
type Mirror interface {
	Mirror(ctx context.Context, doc types.Document, fields map[string]any) error
}

type Service struct {
	repository repository.ReadingsRepository
	mirror     Mirror
	logger     *slog.Logger
	now        func() time.Time
}

// NewService returns a service storing through repo. mirror may be nil.
func NewService(repo repository.ReadingsRepository, mirror Mirror, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repo, mirror: mirror, logger: logger, now: time.Now}
}

// Ingest validates payload as a device record, stores it and returns the new
// document id. deviceHint names the device when the payload does not.
func (s *Service) Ingest(ctx context.Context, payload []byte, deviceHint string) (string, error) {
	fields, err := decode(payload)
	if err != nil {
		return "", err
	}
	if missing := shared.MissingKeys(fields); len(missing) > 0 {
		return "", &MissingKeysError{Missing: missing}
	}

	received := s.now().UTC()
	doc := types.Document{
		ID:         uuid.NewString(),
		DeviceName: deviceName(fields, deviceHint),
		Time:       received,
		ReceivedAt: received,
	}
	if t, ok := epochField(fields, shared.KeyUTC, time.Nanosecond); ok {
		doc.Time = t
		fields[KeyDeviceTime] = t.Format(time.RFC3339Nano)
	}
	if t, ok := epochField(fields, shared.KeyClientSubmissionTime, time.Millisecond); ok {
		doc.ClientTime = t
		fields[KeyClientTime] = t.Format(time.RFC3339Nano)
	}

	doc.Body, err = json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	if err := s.repository.InsertDocument(ctx, doc); err != nil {
		return "", err
	}
	s.logger.Debug("document stored", "id", doc.ID, "device", doc.DeviceName, "time", doc.Time)

	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, doc, fields); err != nil {
			s.logger.Warn("mirror write failed", "id", doc.ID, "device", doc.DeviceName, "error", err)
		}
	}
	return doc.ID, nil
}

// decode keeps numbers as json.Number so nanosecond timestamps survive
// unchanged.
func decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidDocument)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidDocument)
	}
	return fields, nil
}

func deviceName(fields map[string]any, hint string) string {
	if s, ok := fields[shared.KeyDeviceName].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if hint != "" {
		return hint
	}
	return UnknownDevice
}

// epochField converts an integer epoch count in unit to a UTC time. Values
// that are not integers are left alone.
func epochField(fields map[string]any, key string, unit time.Duration) (time.Time, bool) {
	n, ok := fields[key].(json.Number)
	if !ok {
		return time.Time{}, false
	}
	v, err := n.Int64()
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(v).UTC(), true
	default:
		return time.Unix(0, v).UTC(), true
	}
}
