// Package serialbus drives the radio through bridge firmware on a UART.
// Each transfer is a frame with a three byte header carrying the access
// opcode, the register address or command code, and a payload length,
// followed by the payload for writes. Reads answer with exactly the
// requested number of bytes and nothing else.
package serialbus

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

const (
	defaultBaud     = 115200
	responseTimeout = 2 * time.Second
)

// Config selects the serial line the bridge hangs off.
type Config struct {
	// Port is the serial device path, for example "/dev/ttyUSB0".
	Port string
	// Baud is the line rate. Zero selects 115200.
	Baud int
}

// SerialBus implements the register bus through a UART bridge. A mutex
// serializes frames so a FIFO status poll and the burst that follows
// cannot interleave with another access.
type SerialBus struct {
	mu   sync.Mutex
	port *serial.Port
}

// Open opens the serial line named by cfg.
func Open(cfg Config) (*SerialBus, error) {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	config := &serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        8,
		ReadTimeout: responseTimeout,
	}
	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port, err: %w", err)
	}
	return &SerialBus{port: port}, nil
}

// Close flushes and closes the serial line.
func (b *SerialBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.port.Flush(); err != nil {
		return fmt.Errorf("failed to flush serial stream: %w", err)
	}
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial stream: %w", err)
	}
	return nil
}

// ReadRegister fills buf from consecutive registers starting at addr.
func (b *SerialBus) ReadRegister(addr uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readFrame(addr, buf)
}

// WriteRegister writes data to consecutive registers starting at addr.
func (b *SerialBus) WriteRegister(addr uint8, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeFrame(addr, data)
}

// DispatchCommand strobes a command code.
func (b *SerialBus) DispatchCommand(code uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send([]byte{hal.OpCommand, code, 0}); err != nil {
		return fmt.Errorf("failed to dispatch command 0x%02X: %w", code, err)
	}
	return nil
}

// WriteFIFO busy-waits until the TX FIFO has room, then pushes as much of p
// as fits and reports how much was written.
func (b *SerialBus) WriteFIFO(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var status [1]byte
	var space int
	for {
		if err := b.readFrame(hal.TxFifoStatusReg, status[:]); err != nil {
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
	if err := b.writeFrame(hal.FifoAddress, p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadFIFO busy-waits until the RX FIFO holds data, then pops at most
// len(p) bytes and reports how much was read.
func (b *SerialBus) ReadFIFO(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var status [1]byte
	var avail int
	for {
		if err := b.readFrame(hal.RxFifoStatusReg, status[:]); err != nil {
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
	if err := b.readFrame(hal.FifoAddress, p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *SerialBus) readFrame(addr uint8, buf []byte) error {
	if err := b.send([]byte{hal.OpRead, addr, uint8(len(buf))}); err != nil {
		return fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	if err := b.receive(buf); err != nil {
		return fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	return nil
}

func (b *SerialBus) writeFrame(addr uint8, data []byte) error {
	frame := make([]byte, 3+len(data))
	frame[0] = hal.OpWrite
	frame[1] = addr
	frame[2] = uint8(len(data))
	copy(frame[3:], data)
	if err := b.send(frame); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

func (b *SerialBus) send(frame []byte) error {
	n, err := b.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write, %d of %d bytes", n, len(frame))
	}
	return nil
}

// receive accumulates len(buf) bytes. The port read times out on its own,
// a zero length read past the deadline means the bridge went silent.
func (b *SerialBus) receive(buf []byte) error {
	deadline := time.Now().Add(responseTimeout)
	off := 0
	for off < len(buf) {
		n, err := b.port.Read(buf[off:])
		if err != nil && err != io.EOF {
			return err
		}
		off += n
		if n == 0 && time.Now().After(deadline) {
			return fmt.Errorf("response timed out after %d of %d bytes", off, len(buf))
		}
	}
	return nil
}
