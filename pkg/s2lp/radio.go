// Package s2lp drives the STMicroelectronics S2-LP sub-GHz transceiver
// over a register bus and two GPIO lines. The driver models the chip as a
// small state machine: a Radio starts in Shutdown, Init brings it to
// Ready, and SendPacket/StartReceive hand out transfer objects that own
// the radio until they are finished or aborted.
package s2lp

import (
	"fmt"
	"time"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

// LogPrintf receives driver traces when installed with SetLogger.
type LogPrintf func(format string, v ...interface{})

// State is the driver's view of the chip.
type State int

const (
	StateShutdown State = iota
	StateReady
	StateStandby
	StateTx
	StateRx
)

func (s State) String() string {
	switch s {
	case StateShutdown:
		return "Shutdown"
	case StateReady:
		return "Ready"
	case StateStandby:
		return "Standby"
	case StateTx:
		return "Tx"
	case StateRx:
		return "Rx"
	default:
		return "Invalid"
	}
}

// Radio is one S2-LP behind a register bus, a shutdown line and one of the
// chip GPIOs wired back as interrupt line. Operations are legal only in
// the states listed in their documentation; anywhere else they return a
// StateError. A Radio is not safe for concurrent use: the chip processes
// one operation at a time and the driver mirrors that.
type Radio struct {
	ll      Registers
	sdn     hal.OutputPin
	irq     hal.IrqPin
	irqGpio GpioNumber
	delay   hal.Delay

	state  State
	xtal   uint32
	fdig   uint32 // digital domain clock, derived during Init
	format PacketFormat

	log LogPrintf
}

// New wires up a Radio in the Shutdown state. irqGpio names the chip GPIO
// that is physically connected to the irq input line.
func New(bus hal.RegisterBus, sdn hal.OutputPin, irq hal.IrqPin, irqGpio GpioNumber, delay hal.Delay) *Radio {
	return &Radio{
		ll:      Registers{bus: bus},
		sdn:     sdn,
		irq:     irq,
		irqGpio: irqGpio,
		delay:   delay,
		state:   StateShutdown,
	}
}

// SetLogger installs a trace hook, nil disables tracing.
func (r *Radio) SetLogger(l LogPrintf) { r.log = l }

func (r *Radio) logf(format string, v ...interface{}) {
	if r.log != nil {
		r.log(format, v...)
	}
}

// State reports the current driver state.
func (r *Radio) State() State { return r.state }

// DigitalFrequency reports the derived digital domain clock in Hz, zero
// before Init.
func (r *Radio) DigitalFrequency() uint32 { return r.fdig }

func (r *Radio) ensure(op string, want State) error {
	if r.state != want {
		return &StateError{Op: op, State: r.state}
	}
	return nil
}

func (r *Radio) ensureAddressable(op string) error {
	if r.state == StateShutdown {
		return &StateError{Op: op, State: r.state}
	}
	return nil
}

const (
	statePollInterval = 100 * time.Microsecond
	statePollAttempts = 200
)

// waitForChipState polls MC_STATE0 until the chip acknowledges a state.
func (r *Radio) waitForChipState(want ChipState) error {
	last := ChipState(0xFF)
	for i := 0; i < statePollAttempts; i++ {
		st, err := r.ll.ChipState()
		if err != nil {
			return err
		}
		if st == want {
			return nil
		}
		last = st
		r.delay.Delay(statePollInterval)
	}
	return fmt.Errorf("%w: stuck in %s while waiting for %s", ErrBadState, last, want)
}

// abortAndFlush strobes SABORT and then flushes one of the FIFOs.
func (r *Radio) abortAndFlush(flushCmd uint8) error {
	if err := r.ll.Command(CMD_SABORT); err != nil {
		return err
	}
	return r.ll.Command(flushCmd)
}

// SetFormat configures the packet format for this init session. Legal once
// per session in Ready; the format can only change by going through
// Shutdown and Init again, which also resets the chip side.
func (r *Radio) SetFormat(f PacketFormat) error {
	if err := r.ensure("set format", StateReady); err != nil {
		return err
	}
	if r.format != nil {
		return ErrFormatConfigured
	}
	if err := f.applyConfig(r); err != nil {
		return fmt.Errorf("failed to apply packet format config: %w", err)
	}
	if err := r.ll.Write8(FIFO_CONFIG0, FIFO_THRESHOLD_DEFAULT); err != nil {
		return fmt.Errorf("failed to restore TX FIFO threshold: %w", err)
	}
	if err := r.ll.Write8(FIFO_CONFIG3, FIFO_THRESHOLD_DEFAULT); err != nil {
		return fmt.Errorf("failed to restore RX FIFO threshold: %w", err)
	}
	// Let the SMPS level track the radio state.
	if err := r.ll.Modify8(PM_CONF1, 0, PM_CONF1_SMPS_LVL_MODE); err != nil {
		return err
	}
	// Static carrier sense with the slowest RSSI filter.
	if err := r.ll.Modify8(RSSI_FLT, 0xF0|RSSI_FLT_CS_MODE, 14<<RSSI_FLT_SHIFT); err != nil {
		return err
	}
	// Carrier sense threshold, 65 raw is about -81 dBm.
	if err := r.ll.Write8(RSSI_TH, 65); err != nil {
		return err
	}
	r.format = f
	return nil
}

// Standby drops the chip into its lowest active power state. Legal in
// Ready; only WakeUp leads back.
func (r *Radio) Standby() error {
	if err := r.ensure("standby", StateReady); err != nil {
		return err
	}
	if err := r.ll.Command(CMD_STANDBY); err != nil {
		return err
	}
	if err := r.waitForChipState(ChipStateStandby); err != nil {
		return err
	}
	r.state = StateStandby
	return nil
}

// WakeUp returns the chip from Standby to Ready.
func (r *Radio) WakeUp() error {
	if err := r.ensure("wake up", StateStandby); err != nil {
		return err
	}
	if err := r.ll.Command(CMD_READY); err != nil {
		return err
	}
	if err := r.waitForChipState(ChipStateReady); err != nil {
		return err
	}
	r.state = StateReady
	return nil
}

// Shutdown powers the chip down by raising the shutdown line. All chip
// side configuration is lost; the next Init starts from scratch.
func (r *Radio) Shutdown() error {
	if err := r.ensure("shutdown", StateReady); err != nil {
		return err
	}
	if err := r.sdn.SetHigh(); err != nil {
		return fmt.Errorf("failed to raise shutdown pin: %w", err)
	}
	r.state = StateShutdown
	r.format = nil
	r.fdig = 0
	r.xtal = 0
	return nil
}

// SetGpioFunction routes a chip GPIO to one of its selectable signals.
// Legal in every state except Shutdown. Reconfiguring the GPIO that is
// wired as the interrupt line breaks the TX/RX completion protocol.
func (r *Radio) SetGpioFunction(gpio GpioNumber, mode GpioMode, sel GpioSelect) error {
	if err := r.ensureAddressable("set gpio function"); err != nil {
		return err
	}
	return r.ll.Write8(uint8(gpio), gpioConfValue(mode, sel))
}

// SetChannel offsets the carrier from the base frequency by chnum steps
// of spacingHz. Legal in Ready.
func (r *Radio) SetChannel(chnum uint8, spacingHz uint32) error {
	if err := r.ensure("set channel", StateReady); err != nil {
		return err
	}
	if err := r.ll.Write8(CHSPACE, fitChannelSpacing(r.xtal, spacingHz)); err != nil {
		return err
	}
	return r.ll.Write8(CHNUM, chnum)
}

// DeviceInfo reads the part number and version registers. Legal in every
// state except Shutdown.
func (r *Radio) DeviceInfo() (partNumber, version uint8, err error) {
	if err := r.ensureAddressable("device info"); err != nil {
		return 0, 0, err
	}
	return r.ll.DeviceInfo()
}

// ReadRSSI samples the running RSSI measurement in dBm. The value is only
// meaningful while the receiver is active.
func (r *Radio) ReadRSSI() (int16, error) {
	if err := r.ensureAddressable("read rssi"); err != nil {
		return 0, err
	}
	raw, err := r.ll.Read8(RSSI_LEVEL_RUN)
	if err != nil {
		return 0, err
	}
	return rssiToDBm(raw), nil
}

// LowLevel exposes the raw register file. It bypasses every assumption
// the driver makes about the chip, so treat it as a debugging and bring
// up tool, not an API. Illegal in Shutdown.
func (r *Radio) LowLevel() (*Registers, error) {
	if err := r.ensureAddressable("low level access"); err != nil {
		return nil, err
	}
	return &r.ll, nil
}
