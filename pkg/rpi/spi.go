package rpi

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

const defaultSpiSpeed = 8 * physic.MegaHertz

// SpiBus implements the register bus over a spidev port. A mutex serializes
// transfers so a FIFO status poll and the burst that follows cannot
// interleave with another access.
type SpiBus struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
}

func openSpiBus(name string, speed physic.Frequency) (*SpiBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	if speed == 0 {
		speed = defaultSpiSpeed
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", name, err)
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure SPI port: %w", err)
	}
	return &SpiBus{port: port, conn: conn}, nil
}

// ReadRegister fills buf from consecutive registers starting at addr.
func (b *SpiBus) ReadRegister(addr uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readBurst(addr, buf)
}

// WriteRegister writes data to consecutive registers starting at addr.
func (b *SpiBus) WriteRegister(addr uint8, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeBurst(addr, data)
}

// DispatchCommand strobes a command code.
func (b *SpiBus) DispatchCommand(code uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Tx([]byte{hal.OpCommand, code}, nil); err != nil {
		return fmt.Errorf("failed to dispatch command 0x%02X: %w", code, err)
	}
	return nil
}

// WriteFIFO busy-waits until the TX FIFO has room, then pushes as much of p
// as fits and reports how much was written.
func (b *SpiBus) WriteFIFO(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var status [1]byte
	var space int
	for {
		if err := b.readBurst(hal.TxFifoStatusReg, status[:]); err != nil {
			return 0, err
		}
		space = hal.FifoDepth - int(status[0])
		if space > 0 {
			break
		}
	}
	n := len(p)
	if n > space {
		n = space
	}
	if err := b.writeBurst(hal.FifoAddress, p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadFIFO busy-waits until the RX FIFO holds data, then pops at most
// len(p) bytes and reports how much was read.
func (b *SpiBus) ReadFIFO(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var status [1]byte
	var avail int
	for {
		if err := b.readBurst(hal.RxFifoStatusReg, status[:]); err != nil {
			return 0, err
		}
		avail = int(status[0])
		if avail > 0 {
			break
		}
	}
	n := len(p)
	if n > avail {
		n = avail
	}
	if err := b.readBurst(hal.FifoAddress, p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *SpiBus) readBurst(addr uint8, buf []byte) error {
	w := make([]byte, 2+len(buf))
	w[0] = hal.OpRead
	w[1] = addr
	r := make([]byte, len(w))
	if err := b.conn.Tx(w, r); err != nil {
		return fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	copy(buf, r[2:])
	return nil
}

func (b *SpiBus) writeBurst(addr uint8, data []byte) error {
	w := make([]byte, 2+len(data))
	w[0] = hal.OpWrite
	w[1] = addr
	copy(w[2:], data)
	if err := b.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

func (b *SpiBus) close() error {
	return b.port.Close()
}
