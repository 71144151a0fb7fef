package hw

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// sharedI2C serializes transactions from every slot on one bus.
type sharedI2C struct {
	mu  sync.Mutex
	bus i2c.BusCloser
}

func (b *sharedI2C) String() string { return b.bus.String() }

func (b *sharedI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(addr, w, r)
}

func (b *sharedI2C) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.SetSpeed(f)
}

// sharedSPI connects its port once and hands the same serialized
// connection to every caller.
type sharedSPI struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn *lockedConn
	mode spi.Mode
	bits int
}

func (p *sharedSPI) String() string { return p.port.String() }

func (p *sharedSPI) LimitSpeed(f physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port.LimitSpeed(f)
}

func (p *sharedSPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		if mode != p.mode || bits != p.bits {
			return nil, fmt.Errorf("hw: %s already connected as mode %v/%d bits, requested %v/%d",
				p.port, p.mode, p.bits, mode, bits)
		}
		return p.conn, nil
	}
	c, err := p.port.Connect(f, mode, bits)
	if err != nil {
		return nil, err
	}
	p.conn = &lockedConn{mu: &p.mu, conn: c}
	p.mode, p.bits = mode, bits
	return p.conn, nil
}

type lockedConn struct {
	mu   *sync.Mutex
	conn spi.Conn
}

func (c *lockedConn) String() string { return c.conn.String() }

func (c *lockedConn) Duplex() conn.Duplex { return c.conn.Duplex() }

func (c *lockedConn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Tx(w, r)
}

func (c *lockedConn) TxPackets(p []spi.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.TxPackets(p)
}
