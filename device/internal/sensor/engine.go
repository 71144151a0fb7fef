package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Thermometer reports the host die temperature in °C. It must always
// answer; implementations return their last good value on failure.
type Thermometer interface {
	DieTemperature(ctx context.Context) float64
}

// Slot is one configured sensor position and its learned offset.
type Slot struct {
	Index  int
	Config SlotConfig

	driver Driver
	handle Handle
	offset OffsetState
}

// Online reports whether the slot holds a live handle.
func (s *Slot) Online() bool { return s.handle != nil }

// Offset returns a copy of the slot's offset state.
func (s *Slot) Offset() OffsetState { return s.offset }

// Engine produces one SensorReading per slot, falling back to a
// die-temperature estimate when a part is missing or failing.
type Engine struct {
	mu sync.Mutex

	reg     *Registry
	thermo  Thermometer
	slots   []*Slot
	logger  *slog.Logger
	settle  time.Duration
	version string
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSettleDelay pauses for d after each successful real read in ReadAll.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settle = d }
}

// WithDriverVersion overrides DriverVersion on every reading.
func WithDriverVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// NewEngine initializes every slot and seeds each offset from a single
// read. Slots whose part fails to initialize stay in the engine without
// a handle and are served from the die temperature.
func NewEngine(ctx context.Context, reg *Registry, thermo Thermometer, cfgs []SlotConfig, opts ...Option) *Engine {
	e := &Engine{
		reg:     reg,
		thermo:  thermo,
		logger:  slog.Default(),
		version: DriverVersion,
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, cfg := range cfgs {
		s := &Slot{Index: i, Config: cfg, offset: NewOffsetState(0)}
		s.driver, s.handle = reg.InitializeSlot(ctx, cfg)
		if s.handle != nil {
			tCPU := thermo.DieTemperature(ctx)
			raw, err := reg.ReadRaw(ctx, s.driver, s.handle, cfg.Calibrate)
			if err != nil {
				e.logger.Warn("offset seed read failed", "slot", cfg.String(), "error", err)
			} else {
				s.offset = NewOffsetState(tCPU - raw.Temperature)
			}
		}
		e.slots = append(e.slots, s)
	}
	return e
}

// Slots returns the engine's slots in configuration order.
func (e *Engine) Slots() []*Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Slot(nil), e.slots...)
}

// Offset returns the offset state of slot i.
func (e *Engine) Offset(i int) (OffsetState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.slots) {
		return OffsetState{}, fmt.Errorf("sensor: slot %d out of range [0,%d)", i, len(e.slots))
	}
	return e.slots[i].offset, nil
}

// GetReading produces the current reading for s. Transient device faults
// yield a cpu-adjusted estimate and a nil error. Any other read failure
// yields the same estimate together with the error.
func (e *Engine) GetReading(ctx context.Context, s *Slot) (SensorReading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.read(ctx, s)
}

// Read produces the current reading for slot i.
func (e *Engine) Read(ctx context.Context, i int) (SensorReading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.slots) {
		return SensorReading{}, fmt.Errorf("sensor: slot %d out of range [0,%d)", i, len(e.slots))
	}
	return e.read(ctx, e.slots[i])
}

// ReadAll reads every slot in order. The returned slice always has one
// reading per slot; the error joins any non-transient read failures.
func (e *Engine) ReadAll(ctx context.Context) ([]SensorReading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SensorReading, 0, len(e.slots))
	var errs []error
	for _, s := range e.slots {
		r, err := e.read(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %d (%s): %w", s.Index+1, s.Config, err))
		}
		out = append(out, r)
		if r.Source == SourceSensor && e.settle > 0 {
			e.pause(ctx)
		}
	}
	return out, errors.Join(errs...)
}

// Close halts every live handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, s := range e.slots {
		if s.handle == nil {
			continue
		}
		if err := s.handle.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", s.Config, err))
		}
		s.handle = nil
	}
	return errors.Join(errs...)
}

func (e *Engine) read(ctx context.Context, s *Slot) (SensorReading, error) {
	tCPU := e.thermo.DieTemperature(ctx)

	if s.handle == nil {
		if s.offset.Learned() {
			return e.estimate(tCPU-s.offset.AverageDelta, SourceCPUAdjusted), nil
		}
		return e.estimate(tCPU, SourceCPURaw), nil
	}

	raw, err := e.reg.ReadRaw(ctx, s.driver, s.handle, s.Config.Calibrate)
	if err != nil {
		fallback := e.estimate(tCPU-s.offset.AverageDelta, SourceCPUAdjusted)
		if IsUnavailable(err) {
			e.logger.Warn("sensor unavailable, using die temperature",
				"slot", s.Config.String(),
				"average_delta", s.offset.AverageDelta,
				"error", err,
			)
			return fallback, nil
		}
		e.logger.Error("sensor read failed",
			"slot", s.Config.String(),
			"error", err,
		)
		return fallback, err
	}

	s.offset.Fold(tCPU - raw.Temperature)
	e.logger.Debug("offset updated",
		"slot", s.Config.String(),
		"average_delta", s.offset.AverageDelta,
		"samples", s.offset.SampleCount,
	)
	return e.pack(s.driver, raw), nil
}

func (e *Engine) pack(d Driver, raw RawReading) SensorReading {
	derived := d.Derive(raw)
	return SensorReading{
		Temperature:     Tenths(raw.Temperature),
		Humidity:        tenthsOf(raw.Humidity),
		Pressure:        wholeOf(raw.Pressure),
		GasResistance:   wholeOf(raw.GasResistance),
		AirQualityIndex: wholeOf(derived.AirQualityIndex),
		TVOC:            wholeOf(raw.TVOC),
		ECO2:            wholeOf(raw.ECO2),
		HeatIndex:       tenthsOf(derived.HeatIndex),
		Source:          SourceSensor,
		DriverVersion:   e.version,
	}
}

func (e *Engine) estimate(t float64, src SourceType) SensorReading {
	return SensorReading{
		Temperature:   Tenths(t),
		Source:        src,
		DriverVersion: e.version,
	}
}

func (e *Engine) pause(ctx context.Context) {
	t := time.NewTimer(e.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
