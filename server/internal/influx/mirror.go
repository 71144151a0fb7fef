// Package influx mirrors the numeric slot fields of stored documents into
// an InfluxDB bucket for dashboards.
package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"labmonitor/server/internal/config"
	"labmonitor/server/internal/modules/readings/types"
	shared "labmonitor/shared/types"
)

const Measurement = "environment"

// Record field suffix to Influx field name.
var slotMetrics = []struct{ key, field string }{
	{"Temp", "temperature"},
	{"RH", "humidity"},
	{"P", "pressure"},
	{"Gas", "gas"},
	{"IAQ", "iaq"},
	{"TVOC", "tvoc"},
	{"eCO2", "eco2"},
	{"HI", "heat_index"},
}

type Mirror struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func New(cfg config.Config) (*Mirror, error) {
	if cfg.InfluxURL == "" {
		return nil, fmt.Errorf("influx: url is required")
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Mirror{
		client: client,
		writer: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
	}, nil
}

// Mirror writes one point per slot that reported at least one number.
func (m *Mirror) Mirror(ctx context.Context, doc types.Document, fields map[string]any) error {
	points := Points(doc, fields)
	if len(points) == 0 {
		return nil
	}
	if err := m.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (m *Mirror) Close() {
	m.client.Close()
}

// Points converts a record's slot fields into points tagged by device, slot,
// sensor name and source type. Placeholders and non-numeric values are
// skipped.
func Points(doc types.Document, fields map[string]any) []*write.Point {
	var points []*write.Point
	for n := 1; ; n++ {
		source, ok := fields[shared.SlotKey(n, "type")]
		if !ok {
			break
		}
		values := map[string]any{}
		for _, m := range slotMetrics {
			if v, ok := number(fields[shared.SlotKey(n, m.key)]); ok {
				values[m.field] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		tags := map[string]string{
			"device": doc.DeviceName,
			"slot":   strconv.Itoa(n),
			"source": fmt.Sprint(source),
		}
		if name, ok := fields[shared.SlotKey(n, "name")].(string); ok && name != "" {
			tags["sensor"] = name
		}
		points = append(points, influxdb2.NewPoint(Measurement, tags, values, doc.Time))
	}
	return points
}

func number(v any) (float64, bool) {
	switch v := v.(type) {
	case string:
		if v == shared.Placeholder {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	}
	return 0, false
}
