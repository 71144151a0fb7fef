// Package cputemp reads the SoC die temperature through gopsutil.
package cputemp

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/sensors"
)

// DefaultKeys are thermal sensor keys tried in order: the Raspberry Pi SoC
// zone, then Intel and AMD package sensors.
var DefaultKeys = []string{
	"cpu_thermal",
	"cpu_thermal_input",
	"coretemp_package_id_0",
	"coretemp_package_id_0_input",
	"k10temp_tctl",
	"k10temp_tctl_input",
}

// ReadFunc lists the host's temperature sensors.
type ReadFunc func(ctx context.Context) ([]sensors.TemperatureStat, error)

// Reader reports the die temperature and falls back to the last good value
// when a later read fails, so callers can treat it as infallible.
type Reader struct {
	mu     sync.Mutex
	read   ReadFunc
	keys   []string
	logger *slog.Logger

	last float64
	have bool
}

// New returns a Reader backed by sensors.TemperaturesWithContext.
func New(logger *slog.Logger, keys ...string) *Reader {
	return newReader(logger, sensors.TemperaturesWithContext, keys)
}

func newReader(logger *slog.Logger, read ReadFunc, keys []string) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	return &Reader{read: read, keys: keys, logger: logger}
}

// DieTemperature returns the current die temperature in °C, or the last
// good value when none can be read. It returns 0 before the first good read.
func (r *Reader) DieTemperature(ctx context.Context) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.read(ctx)
	// gopsutil returns partial results alongside warnings.
	if t, ok := r.pick(stats); ok {
		r.last, r.have = t, true
		return t
	}
	if err != nil {
		r.logger.Warn("cpu temperature read failed", "error", err, "last", r.last)
	} else {
		r.logger.Warn("no cpu temperature sensor found", "keys", r.keys)
	}
	return r.last
}

// Known reports whether at least one read has succeeded.
func (r *Reader) Known() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.have
}

func (r *Reader) pick(stats []sensors.TemperatureStat) (float64, bool) {
	valid := func(s sensors.TemperatureStat) bool {
		return !math.IsNaN(s.Temperature) && !math.IsInf(s.Temperature, 0) && s.Temperature > -273.15
	}
	for _, k := range r.keys {
		for _, s := range stats {
			if s.SensorKey == k && valid(s) {
				return s.Temperature, true
			}
		}
	}
	for _, s := range stats {
		key := strings.ToLower(s.SensorKey)
		if (strings.Contains(key, "cpu") || strings.Contains(key, "soc")) && valid(s) {
			return s.Temperature, true
		}
	}
	return 0, false
}
