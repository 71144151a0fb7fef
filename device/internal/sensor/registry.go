package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// DefaultReadTimeout bounds a single ReadRaw dispatch.
const DefaultReadTimeout = 2 * time.Second

// Registry maps model names to drivers. The set of drivers is fixed when
// the registry is built.
type Registry struct {
	drivers     map[Model]Driver
	logger      *slog.Logger
	readTimeout time.Duration
}

// NewRegistry builds a registry over the given drivers. It panics on a
// duplicate model so wiring mistakes surface at start-up.
func NewRegistry(logger *slog.Logger, drivers ...Driver) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		drivers:     make(map[Model]Driver, len(drivers)),
		logger:      logger,
		readTimeout: DefaultReadTimeout,
	}
	for _, d := range drivers {
		m := d.Model()
		if m == "" {
			panic("sensor: driver with empty model")
		}
		if _, exists := r.drivers[m]; exists {
			panic(fmt.Sprintf("sensor: driver already registered for model %q", m))
		}
		r.drivers[m] = d
	}
	return r
}

// SetReadTimeout overrides DefaultReadTimeout. Non-positive values are ignored.
func (r *Registry) SetReadTimeout(d time.Duration) {
	if d > 0 {
		r.readTimeout = d
	}
}

// Resolve returns the driver for model.
func (r *Registry) Resolve(model Model) (Driver, bool) {
	d, ok := r.drivers[model]
	return d, ok
}

// Models returns the registered model names.
func (r *Registry) Models() []Model {
	out := make([]Model, 0, len(r.drivers))
	for _, m := range Models {
		if _, ok := r.drivers[m]; ok {
			out = append(out, m)
		}
	}
	var extra []Model
	for m := range r.drivers {
		if !slices.Contains(Models, m) {
			extra = append(extra, m)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// InitializeSlot resolves the slot's driver and initializes the part.
// An empty model leaves the slot unpopulated. Failures are logged and reported as a nil handle; the driver is still
// returned when the model is known.
func (r *Registry) InitializeSlot(ctx context.Context, cfg SlotConfig) (Driver, Handle) {
	if cfg.Model == "" {
		r.logger.Info("sensor slot empty", "slot", cfg.String())
		return nil, nil
	}
	d, ok := r.Resolve(cfg.Model)
	if !ok {
		r.logger.Error("sensor init failed",
			"slot", cfg.String(),
			"model", cfg.Model,
			"error", fmt.Errorf("%w: %q", ErrUnknownModel, cfg.Model),
		)
		return nil, nil
	}

	h, err := d.Init(ctx, cfg.Pins)
	if err != nil {
		r.logger.Error("sensor init failed",
			"slot", cfg.String(),
			"model", cfg.Model,
			"pins", FormatPins(cfg.Pins),
			"error", err,
		)
		return d, nil
	}
	if h == nil {
		r.logger.Error("sensor init returned no handle", "slot", cfg.String(), "model", cfg.Model)
		return d, nil
	}

	r.logger.Info("sensor initialized",
		"slot", cfg.String(),
		"model", cfg.Model,
		"pins", FormatPins(cfg.Pins),
		"calibrate", cfg.Calibrate,
	)
	return d, &guarded{Handle: h, busy: make(chan struct{}, 1)}
}

// guarded allows one read at a time on a handle. A read abandoned on
// timeout holds the handle until the driver call returns.
type guarded struct {
	Handle
	busy chan struct{}
}

type readResult struct {
	raw RawReading
	err error
}

// ReadRaw reads h under the registry timeout. When calibrate is set the
// temperature is routed through the driver's correction and the measured
// value is kept in MeasuredTemperature.
func (r *Registry) ReadRaw(ctx context.Context, d Driver, h Handle, calibrate bool) (RawReading, error) {
	if h == nil {
		return RawReading{}, fmt.Errorf("read %s: %w: no handle", d.Model(), ErrUnavailable)
	}

	release := func() {}
	if g, ok := h.(*guarded); ok {
		select {
		case g.busy <- struct{}{}:
			release = func() { <-g.busy }
		default:
			return RawReading{}, Unavailable("read "+string(d.Model()), errReadInFlight)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	ch := make(chan readResult, 1)
	go func() {
		defer release()
		raw, err := h.ReadRaw(ctx)
		ch <- readResult{raw: raw, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		return RawReading{}, Unavailable("read "+string(d.Model()), ctx.Err())
	case res = <-ch:
	}
	if res.err != nil {
		if ctx.Err() != nil {
			return RawReading{}, Unavailable("read "+string(d.Model()), res.err)
		}
		return RawReading{}, fmt.Errorf("read %s: %w", d.Model(), res.err)
	}

	raw := res.raw
	raw.MeasuredTemperature = raw.Temperature
	if calibrate {
		var rh float64
		if raw.Humidity != nil {
			rh = *raw.Humidity
		}
		raw.Temperature = d.CorrectTemperature(raw.Temperature, rh)
	}
	return raw, nil
}
