package s2lp

import (
	"encoding/binary"
	"fmt"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

// Registers is the raw register file of the chip. The driver uses it for
// all of its own traffic; LowLevel hands it out as an escape hatch. Going
// through it directly bypasses the driver's view of the chip state, so
// anything written here must leave the chip the way the driver expects it.
type Registers struct {
	bus hal.RegisterBus
}

// Read8 reads a single register.
func (l *Registers) Read8(addr uint8) (uint8, error) {
	var buf [1]byte
	if err := l.bus.ReadRegister(addr, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	return buf[0], nil
}

// Write8 writes a single register.
func (l *Registers) Write8(addr uint8, v uint8) error {
	if err := l.bus.WriteRegister(addr, []byte{v}); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

// Read fills buf from consecutive registers starting at addr.
func (l *Registers) Read(addr uint8, buf []byte) error {
	if err := l.bus.ReadRegister(addr, buf); err != nil {
		return fmt.Errorf("failed to read %d registers at 0x%02X: %w", len(buf), addr, err)
	}
	return nil
}

// Write stores data into consecutive registers starting at addr.
func (l *Registers) Write(addr uint8, data []byte) error {
	if err := l.bus.WriteRegister(addr, data); err != nil {
		return fmt.Errorf("failed to write %d registers at 0x%02X: %w", len(data), addr, err)
	}
	return nil
}

// Modify8 read-modify-writes a single register, clearing the clear bits
// and setting the set bits.
func (l *Registers) Modify8(addr uint8, clear, set uint8) error {
	v, err := l.Read8(addr)
	if err != nil {
		return err
	}
	return l.Write8(addr, v&^clear|set)
}

// Command strobes a command code.
func (l *Registers) Command(code uint8) error {
	if err := l.bus.DispatchCommand(code); err != nil {
		return fmt.Errorf("failed to dispatch command 0x%02X: %w", code, err)
	}
	return nil
}

// WriteFIFO pushes bytes into the TX FIFO, as many as currently fit.
func (l *Registers) WriteFIFO(p []byte) (int, error) {
	n, err := l.bus.WriteFIFO(p)
	if err != nil {
		return n, fmt.Errorf("failed to write TX FIFO: %w", err)
	}
	return n, nil
}

// ReadFIFO pops available bytes from the RX FIFO into p.
func (l *Registers) ReadFIFO(p []byte) (int, error) {
	n, err := l.bus.ReadFIFO(p)
	if err != nil {
		return n, fmt.Errorf("failed to read RX FIFO: %w", err)
	}
	return n, nil
}

// ChipState reads the state field of MC_STATE0.
func (l *Registers) ChipState() (ChipState, error) {
	v, err := l.Read8(MC_STATE0)
	if err != nil {
		return 0, err
	}
	return chipStateFromMcState0(v), nil
}

// IrqStatus reads the four interrupt status registers, which clears every
// pending interrupt flag on the chip.
func (l *Registers) IrqStatus() (IrqStatus, error) {
	var buf [4]byte
	if err := l.Read(IRQ_STATUS3, buf[:]); err != nil {
		return 0, err
	}
	return IrqStatus(binary.BigEndian.Uint32(buf[:])), nil
}

// SetIrqMask selects which interrupt causes drive the nIRQ line.
func (l *Registers) SetIrqMask(mask IrqStatus) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(mask))
	return l.Write(IRQ_MASK3, buf[:])
}

// DeviceInfo reads the part number and version registers.
func (l *Registers) DeviceInfo() (partNumber, version uint8, err error) {
	if partNumber, err = l.Read8(DEVICE_INFO1); err != nil {
		return 0, 0, err
	}
	if version, err = l.Read8(DEVICE_INFO0); err != nil {
		return 0, 0, err
	}
	return partNumber, version, nil
}
