package hal

import (
	"context"
	"time"
)

// Wire framing shared by every RegisterBus implementation. The first byte
// on the wire selects the access type, the second carries the register
// address or command code.
const (
	OpWrite   uint8 = 0x00
	OpRead    uint8 = 0x01
	OpCommand uint8 = 0x80

	// Both FIFOs are 128 bytes deep and live behind a single address.
	FifoAddress uint8 = 0xFF
	FifoDepth         = 128

	TxFifoStatusReg uint8 = 0x8F // bytes queued in the TX FIFO
	RxFifoStatusReg uint8 = 0x90 // bytes pending in the RX FIFO
)

// RegisterBus moves register and FIFO data between the host and the
// transceiver. Implementations own the wire framing: every register write
// is headed by OpWrite and the register address, every read by OpRead and
// the address, and every command strobe by OpCommand and the command code.
// The FIFO lives at FifoAddress and is always burst transferred.
type RegisterBus interface {
	// ReadRegister fills buf with len(buf) bytes starting at addr.
	ReadRegister(addr uint8, buf []byte) error
	// WriteRegister writes data to consecutive registers starting at addr.
	WriteRegister(addr uint8, data []byte) error
	// DispatchCommand strobes a command code.
	DispatchCommand(code uint8) error
	// WriteFIFO pushes as much of p as the TX FIFO can take right now and
	// reports how much was written. Implementations must poll the TX FIFO
	// status register until at least one byte of space is free.
	WriteFIFO(p []byte) (int, error)
	// ReadFIFO pops at most len(p) bytes from the RX FIFO and reports how
	// much was read. Implementations must poll the RX FIFO status register
	// until at least one byte is available.
	ReadFIFO(p []byte) (int, error)
}

// OutputPin drives a single output line, used for the chip shutdown input.
type OutputPin interface {
	SetHigh() error
	SetLow() error
}

// IrqPin waits on level changes of the interrupt line. Waits must be cancel
// safe: if the wanted level is already present the call returns immediately,
// so a cancelled wait can be reissued without losing an event.
type IrqPin interface {
	WaitForHigh(ctx context.Context) error
	WaitForLow(ctx context.Context) error
}

// Delay blocks the caller for the given duration. Kept as an interface so
// tests and schedulers with their own time source can take over.
type Delay interface {
	Delay(d time.Duration)
}

// StdDelay implements Delay with time.Sleep.
type StdDelay struct{}

func (StdDelay) Delay(d time.Duration) { time.Sleep(d) }
