// Package hw resolves sensor pin assignments to periph.io buses and shares
// each bus between the slots wired to it.
package hw

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"labmonitor/device/internal/sensor"
)

// ErrNoBus is returned when no registered bus is wired to the requested pins.
var ErrNoBus = errors.New("hw: no bus matches pins")

// Host hands out shared, serialized buses. Pin numbers are host GPIO
// numbers: [SCL, SDA] for I2C and [CLK, MOSI, MISO, CS] for SPI.
type Host struct {
	mu     sync.Mutex
	logger *slog.Logger

	listI2C func() []*i2creg.Ref
	listSPI func() []*spireg.Ref

	i2cOpen map[string]*sharedI2C
	spiOpen map[string]*sharedSPI
}

// NewHost initializes the periph.io host drivers.
func NewHost(logger *slog.Logger) (*Host, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, f := range state.Failed {
		logger.Debug("periph driver failed", "driver", f.D.String(), "error", f.Err)
	}
	return newHost(logger, i2creg.All, spireg.All), nil
}

func newHost(logger *slog.Logger, listI2C func() []*i2creg.Ref, listSPI func() []*spireg.Ref) *Host {
	return &Host{
		logger:  logger,
		listI2C: listI2C,
		listSPI: listSPI,
		i2cOpen: map[string]*sharedI2C{},
		spiOpen: map[string]*sharedSPI{},
	}
}

// I2C returns the bus wired to pins [SCL, SDA], or the default bus when
// pins is empty.
func (h *Host) I2C(pins []int) (i2c.Bus, error) {
	if len(pins) != 0 && len(pins) != 2 {
		return nil, fmt.Errorf("%w: I2C needs 2 pins (SCL,SDA), got %d", sensor.ErrInvalidPins, len(pins))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	refs := sortedI2C(h.listI2C())
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no I2C buses registered", ErrNoBus)
	}
	for _, ref := range refs {
		b, err := h.openI2C(ref)
		if err != nil {
			h.logger.Debug("i2c bus open failed", "bus", ref.Name, "error", err)
			continue
		}
		if len(pins) == 0 || i2cPinsMatch(b.bus, pins) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: I2C %v", ErrNoBus, pins)
}

// SPI returns the port wired to pins [CLK, MOSI, MISO, CS], or the default
// port when pins is empty.
func (h *Host) SPI(pins []int) (spi.Port, error) {
	if len(pins) != 0 && len(pins) != 4 {
		return nil, fmt.Errorf("%w: SPI needs 4 pins (CLK,MOSI,MISO,CS), got %d", sensor.ErrInvalidPins, len(pins))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	refs := sortedSPI(h.listSPI())
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no SPI ports registered", ErrNoBus)
	}
	for _, ref := range refs {
		p, err := h.openSPI(ref)
		if err != nil {
			h.logger.Debug("spi port open failed", "port", ref.Name, "error", err)
			continue
		}
		if len(pins) == 0 || spiPinsMatch(p.port, pins) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: SPI %v", ErrNoBus, pins)
}

// Close closes every bus opened through h.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for name, b := range h.i2cOpen {
		if err := b.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	for name, p := range h.spiOpen {
		if err := p.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	h.i2cOpen = map[string]*sharedI2C{}
	h.spiOpen = map[string]*sharedSPI{}
	return errors.Join(errs...)
}

func (h *Host) openI2C(ref *i2creg.Ref) (*sharedI2C, error) {
	if b, ok := h.i2cOpen[ref.Name]; ok {
		return b, nil
	}
	bus, err := ref.Open()
	if err != nil {
		return nil, err
	}
	b := &sharedI2C{bus: bus}
	h.i2cOpen[ref.Name] = b
	h.logger.Info("i2c bus opened", "bus", ref.Name)
	return b, nil
}

func (h *Host) openSPI(ref *spireg.Ref) (*sharedSPI, error) {
	if p, ok := h.spiOpen[ref.Name]; ok {
		return p, nil
	}
	port, err := ref.Open()
	if err != nil {
		return nil, err
	}
	p := &sharedSPI{port: port}
	h.spiOpen[ref.Name] = p
	h.logger.Info("spi port opened", "port", ref.Name)
	return p, nil
}

func i2cPinsMatch(bus i2c.Bus, pins []int) bool {
	p, ok := bus.(i2c.Pins)
	if !ok {
		return false
	}
	scl, sda := p.SCL(), p.SDA()
	if scl == nil || sda == nil {
		return false
	}
	return scl.Number() == pins[0] && sda.Number() == pins[1]
}

func spiPinsMatch(port spi.Port, pins []int) bool {
	p, ok := port.(spi.Pins)
	if !ok {
		return false
	}
	clk, mosi, miso, cs := p.CLK(), p.MOSI(), p.MISO(), p.CS()
	if clk == nil || mosi == nil || miso == nil || cs == nil {
		return false
	}
	return clk.Number() == pins[0] &&
		mosi.Number() == pins[1] &&
		miso.Number() == pins[2] &&
		cs.Number() == pins[3]
}

func sortedI2C(refs []*i2creg.Ref) []*i2creg.Ref {
	out := slices.Clone(refs)
	slices.SortStableFunc(out, func(a, b *i2creg.Ref) int { return a.Number - b.Number })
	return out
}

func sortedSPI(refs []*spireg.Ref) []*spireg.Ref {
	out := slices.Clone(refs)
	slices.SortStableFunc(out, func(a, b *spireg.Ref) int { return a.Number - b.Number })
	return out
}

// Offline resolves no buses. It stands in for Host when the periph.io
// host drivers cannot load, so every slot falls back to the die
// temperature.
type Offline struct{}

func (Offline) I2C(pins []int) (i2c.Bus, error) {
	return nil, fmt.Errorf("%w: host drivers unavailable", ErrNoBus)
}

func (Offline) SPI(pins []int) (spi.Port, error) {
	return nil, fmt.Errorf("%w: host drivers unavailable", ErrNoBus)
}
