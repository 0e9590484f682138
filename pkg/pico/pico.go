//go:build tinygo

// Package pico wires the radio to an RP2040 board built with TinyGo. The
// registers move over a machine SPI peripheral with a hand driven chip
// select and the interrupt pin feeds a one slot edge channel.
package pico

import (
	"context"
	"fmt"
	"machine"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

const spiFrequency = 8_000_000

// OutputPin drives a single GPIO pin.
type OutputPin struct {
	pin machine.Pin
}

// NewOutputPin configures pin as an output at the given initial level.
func NewOutputPin(pin machine.Pin, initialHigh bool) *OutputPin {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	if initialHigh {
		pin.High()
	} else {
		pin.Low()
	}
	return &OutputPin{pin: pin}
}

func (o *OutputPin) SetHigh() error {
	o.pin.High()
	return nil
}

func (o *OutputPin) SetLow() error {
	o.pin.Low()
	return nil
}

// IrqPin watches the radio interrupt pin. Every edge pushes into a one slot
// channel and the level is sampled again after each wakeup, so a dropped
// edge cannot strand a waiter while the level persists.
type IrqPin struct {
	pin  machine.Pin
	edge chan struct{}
}

// NewIrqPin configures pin as an input and hooks both edges.
func NewIrqPin(pin machine.Pin) (*IrqPin, error) {
	p := &IrqPin{pin: pin, edge: make(chan struct{}, 1)}
	pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	err := pin.SetInterrupt(machine.PinToggle, func(machine.Pin) {
		select {
		case p.edge <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set pin interrupt: %w", err)
	}
	return p, nil
}

// WaitForHigh blocks until the pin reads high or ctx ends.
func (p *IrqPin) WaitForHigh(ctx context.Context) error {
	return p.waitForLevel(ctx, true)
}

// WaitForLow blocks until the pin reads low or ctx ends.
func (p *IrqPin) WaitForLow(ctx context.Context) error {
	return p.waitForLevel(ctx, false)
}

func (p *IrqPin) waitForLevel(ctx context.Context, level bool) error {
	for {
		if p.pin.Get() == level {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.edge:
		}
	}
}

// SpiBus implements the register bus on a machine SPI peripheral.
type SpiBus struct {
	spi machine.SPI
	cs  machine.Pin
}

// NewSpiBus configures the peripheral for the radio and claims the chip
// select pin.
func NewSpiBus(spi machine.SPI, sck, sdo, sdi, cs machine.Pin) (*SpiBus, error) {
	err := spi.Configure(machine.SPIConfig{
		Frequency: spiFrequency,
		SCK:       sck,
		SDO:       sdo,
		SDI:       sdi,
		Mode:      0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure SPI: %w", err)
	}
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()
	return &SpiBus{spi: spi, cs: cs}, nil
}

// ReadRegister fills buf from consecutive registers starting at addr.
func (b *SpiBus) ReadRegister(addr uint8, buf []byte) error {
	return b.readBurst(addr, buf)
}

// WriteRegister writes data to consecutive registers starting at addr.
func (b *SpiBus) WriteRegister(addr uint8, data []byte) error {
	return b.writeBurst(addr, data)
}

// DispatchCommand strobes a command code.
func (b *SpiBus) DispatchCommand(code uint8) error {
	b.cs.Low()
	err := b.spi.Tx([]byte{hal.OpCommand, code}, nil)
	b.cs.High()
	if err != nil {
		return fmt.Errorf("failed to dispatch command 0x%02X: %w", code, err)
	}
	return nil
}

// WriteFIFO busy-waits until the TX FIFO has room, then pushes as much of p
// as fits and reports how much was written.
func (b *SpiBus) WriteFIFO(p []byte) (int, error) {
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
	b.cs.Low()
	err := b.spi.Tx(w, r)
	b.cs.High()
	if err != nil {
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
	b.cs.Low()
	err := b.spi.Tx(w, nil)
	b.cs.High()
	if err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}
