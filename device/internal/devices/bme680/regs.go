package bme680

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"
)

// registers reads and writes the BME680 register file using I²C-space
// addresses regardless of the underlying bus.
type registers interface {
	read(reg byte, b []byte) error
	write(reg, v byte) error
	String() string
}

type i2cRegs struct {
	d i2c.Dev
}

func (r *i2cRegs) String() string { return r.d.String() }

func (r *i2cRegs) read(reg byte, b []byte) error {
	return r.d.Tx([]byte{reg}, b)
}

func (r *i2cRegs) write(reg, v byte) error {
	return r.d.Tx([]byte{reg, v}, nil)
}

const (
	spiRegStatus = 0x73
	spiMemPage   = 0x10
	spiReadFlag  = 0x80
)

// spiRegs maps I²C addresses onto the two 128-byte SPI memory pages.
// Page 0 holds 0x80-0xFF, page 1 holds 0x00-0x7F.
type spiRegs struct {
	c    spi.Conn
	page int
}

func (r *spiRegs) String() string { return r.c.String() }

func (r *spiRegs) selectPage(reg byte) error {
	want := 0
	if reg < 0x80 {
		want = 1
	}
	if want == r.page {
		return nil
	}
	var st [2]byte
	if err := r.c.Tx([]byte{spiRegStatus | spiReadFlag, 0}, st[:]); err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	v := st[1] &^ spiMemPage
	if want == 1 {
		v |= spiMemPage
	}
	if err := r.c.Tx([]byte{spiRegStatus, v}, nil); err != nil {
		return fmt.Errorf("select page %d: %w", want, err)
	}
	r.page = want
	return nil
}

func (r *spiRegs) read(reg byte, b []byte) error {
	if err := r.selectPage(reg); err != nil {
		return err
	}
	w := make([]byte, len(b)+1)
	rd := make([]byte, len(b)+1)
	w[0] = reg&0x7F | spiReadFlag
	if err := r.c.Tx(w, rd); err != nil {
		return err
	}
	copy(b, rd[1:])
	return nil
}

func (r *spiRegs) write(reg, v byte) error {
	if err := r.selectPage(reg); err != nil {
		return err
	}
	return r.c.Tx([]byte{reg & 0x7F, v}, nil)
}
