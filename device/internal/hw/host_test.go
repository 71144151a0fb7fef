package hw

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"labmonitor/device/internal/sensor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeI2C struct {
	refs  []*i2creg.Ref
	opens map[string]int
	buses map[string]*i2ctest.Playback
}

func newFakeI2C() *fakeI2C {
	return &fakeI2C{opens: map[string]int{}, buses: map[string]*i2ctest.Playback{}}
}

func (f *fakeI2C) add(name string, number, scl, sda int, ops ...i2ctest.IO) {
	b := &i2ctest.Playback{
		Ops:       ops,
		DontPanic: true,
		SCLPin:    &gpiotest.Pin{N: "SCL", Num: scl},
		SDAPin:    &gpiotest.Pin{N: "SDA", Num: sda},
	}
	f.buses[name] = b
	f.refs = append(f.refs, &i2creg.Ref{
		Name:   name,
		Number: number,
		Open: func() (i2c.BusCloser, error) {
			f.opens[name]++
			return b, nil
		},
	})
}

func (f *fakeI2C) all() []*i2creg.Ref { return f.refs }

func noSPI() []*spireg.Ref { return nil }

func TestHost_I2CDefaultBusIsLowestNumber(t *testing.T) {
	f := newFakeI2C()
	f.add("I2C3", 3, 5, 4)
	f.add("I2C1", 1, 3, 2)
	h := newHost(discardLogger(), f.all, noSPI)

	b, err := h.I2C(nil)
	if err != nil {
		t.Fatalf("I2C(nil): %v", err)
	}
	if b.(*sharedI2C).bus != f.buses["I2C1"] {
		t.Errorf("default bus = %s; want I2C1", b)
	}
}

func TestHost_I2CMatchesPins(t *testing.T) {
	f := newFakeI2C()
	f.add("I2C1", 1, 3, 2)
	f.add("I2C3", 3, 5, 4)
	h := newHost(discardLogger(), f.all, noSPI)

	b, err := h.I2C([]int{5, 4})
	if err != nil {
		t.Fatalf("I2C([5 4]): %v", err)
	}
	if b.(*sharedI2C).bus != f.buses["I2C3"] {
		t.Errorf("bus = %s; want I2C3", b)
	}

	again, err := h.I2C([]int{5, 4})
	if err != nil {
		t.Fatalf("I2C([5 4]) again: %v", err)
	}
	if again != b {
		t.Errorf("second lookup returned a different bus")
	}
	if f.opens["I2C3"] != 1 {
		t.Errorf("I2C3 opened %d times; want 1", f.opens["I2C3"])
	}
}

func TestHost_I2CErrors(t *testing.T) {
	f := newFakeI2C()
	f.add("I2C1", 1, 3, 2)
	h := newHost(discardLogger(), f.all, noSPI)

	if _, err := h.I2C([]int{3}); !errors.Is(err, sensor.ErrInvalidPins) {
		t.Errorf("I2C([3]) error = %v; want ErrInvalidPins", err)
	}
	if _, err := h.I2C([]int{15, 14}); !errors.Is(err, ErrNoBus) {
		t.Errorf("I2C([15 14]) error = %v; want ErrNoBus", err)
	}

	empty := newHost(discardLogger(), newFakeI2C().all, noSPI)
	if _, err := empty.I2C(nil); !errors.Is(err, ErrNoBus) {
		t.Errorf("I2C on empty host error = %v; want ErrNoBus", err)
	}
}

func TestHost_I2CTxPassesThrough(t *testing.T) {
	f := newFakeI2C()
	f.add("I2C1", 1, 3, 2, i2ctest.IO{Addr: 0x38, W: []byte{0x71}, R: []byte{0x18}})
	h := newHost(discardLogger(), f.all, noSPI)

	b, err := h.I2C(nil)
	if err != nil {
		t.Fatalf("I2C: %v", err)
	}
	r := make([]byte, 1)
	if err := b.Tx(0x38, []byte{0x71}, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if r[0] != 0x18 {
		t.Errorf("read = %#x; want 0x18", r[0])
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

type fakePort struct {
	name            string
	clk, mosi, miso *gpiotest.Pin
	cs              *gpiotest.Pin
	connects        int
	closed          bool
}

func (p *fakePort) String() string                      { return p.name }
func (p *fakePort) Close() error                        { p.closed = true; return nil }
func (p *fakePort) LimitSpeed(f physic.Frequency) error { return nil }
func (p *fakePort) CLK() gpio.PinOut                    { return p.clk }
func (p *fakePort) MOSI() gpio.PinOut                   { return p.mosi }
func (p *fakePort) MISO() gpio.PinIn                    { return p.miso }
func (p *fakePort) CS() gpio.PinOut                     { return p.cs }

func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.connects++
	return &fakeConn{port: p}, nil
}

type fakeConn struct{ port *fakePort }

func (c *fakeConn) String() string      { return c.port.name }
func (c *fakeConn) Duplex() conn.Duplex { return conn.Full }
func (c *fakeConn) TxPackets(p []spi.Packet) error {
	return nil
}
func (c *fakeConn) Tx(w, r []byte) error {
	copy(r, w)
	return nil
}

func newFakePort(name string, clk, mosi, miso, cs int) *fakePort {
	return &fakePort{
		name: name,
		clk:  &gpiotest.Pin{N: "CLK", Num: clk},
		mosi: &gpiotest.Pin{N: "MOSI", Num: mosi},
		miso: &gpiotest.Pin{N: "MISO", Num: miso},
		cs:   &gpiotest.Pin{N: "CS", Num: cs},
	}
}

func TestHost_SPIMatchesPinsAndSharesConn(t *testing.T) {
	p0 := newFakePort("SPI0.0", 11, 10, 9, 8)
	p1 := newFakePort("SPI0.1", 11, 10, 9, 7)
	refs := []*spireg.Ref{
		{Name: "SPI0.0", Number: 0, Open: func() (spi.PortCloser, error) { return p0, nil }},
		{Name: "SPI0.1", Number: 1, Open: func() (spi.PortCloser, error) { return p1, nil }},
	}
	h := newHost(discardLogger(), newFakeI2C().all, func() []*spireg.Ref { return refs })

	port, err := h.SPI([]int{11, 10, 9, 7})
	if err != nil {
		t.Fatalf("SPI: %v", err)
	}
	c1, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c2, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatalf("Connect again: %v", err)
	}
	if c1 != c2 || p1.connects != 1 {
		t.Errorf("connects = %d, same conn = %v; want 1, true", p1.connects, c1 == c2)
	}
	if _, err := port.Connect(physic.MegaHertz, spi.Mode3, 8); err == nil {
		t.Errorf("Connect with a different mode succeeded")
	}

	r := make([]byte, 2)
	if err := c1.Tx([]byte{0xAB, 0xCD}, r); err != nil || r[0] != 0xAB {
		t.Errorf("Tx = %x, %v", r, err)
	}

	if _, err := h.SPI([]int{1, 2, 3}); !errors.Is(err, sensor.ErrInvalidPins) {
		t.Errorf("SPI(3 pins) error = %v; want ErrInvalidPins", err)
	}
	if _, err := h.SPI([]int{1, 2, 3, 4}); !errors.Is(err, ErrNoBus) {
		t.Errorf("SPI(unwired) error = %v; want ErrNoBus", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !p0.closed || !p1.closed {
		t.Errorf("Close did not close opened ports")
	}
}

func TestOffline(t *testing.T) {
	var o Offline
	if _, err := o.I2C(nil); !errors.Is(err, ErrNoBus) {
		t.Errorf("I2C error = %v; want ErrNoBus", err)
	}
	if _, err := o.SPI([]int{1, 2, 3, 4}); !errors.Is(err, ErrNoBus) {
		t.Errorf("SPI error = %v; want ErrNoBus", err)
	}
}
