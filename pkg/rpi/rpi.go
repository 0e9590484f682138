// Package rpi wires the radio to a Raspberry Pi. Registers move over a
// spidev port and the shutdown and interrupt pins over the GPIO character
// device.
package rpi

import (
	"fmt"

	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/physic"

	"github.com/mbalug7/go-s2lp/pkg/hal"
)

const consumer = "go-s2lp"

// Config selects the Pi resources the radio is wired to.
type Config struct {
	// GpioChip is the GPIO character device name. Empty selects "gpiochip0".
	GpioChip string
	// SdnPin is the BCM number of the line driving the radio SDN input.
	SdnPin int
	// IrqPin is the BCM number of the line wired to the radio interrupt GPIO.
	IrqPin int
	// SpiPort is a periph.io SPI port name or alias. Empty selects the first
	// port registered on the host.
	SpiPort string
	// SpiSpeed caps the SPI clock. Zero selects 8 MHz, the radio itself tops
	// out at 10 MHz.
	SpiSpeed physic.Frequency
}

// Hardware bundles the opened Pi resources. Pass Bus, Sdn and Irq to the
// radio constructor and Close the whole set when done with the radio.
type Hardware struct {
	chip *gpiod.Chip
	sdn  *OutputLine
	irq  *IrqLine
	bus  *SpiBus
}

// Open claims the GPIO lines and the SPI port named by cfg.
func Open(cfg Config) (*Hardware, error) {
	if cfg.GpioChip == "" {
		cfg.GpioChip = "gpiochip0"
	}
	chip, err := gpiod.NewChip(cfg.GpioChip, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", cfg.GpioChip, err)
	}
	hw := &Hardware{chip: chip}
	// Hold the radio in shutdown until Init pulses the pin itself.
	hw.sdn, err = newOutputLine(chip, cfg.SdnPin, 1)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.irq, err = newIrqLine(chip, cfg.IrqPin)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.bus, err = openSpiBus(cfg.SpiPort, cfg.SpiSpeed)
	if err != nil {
		hw.Close()
		return nil, err
	}
	return hw, nil
}

// Bus returns the SPI register bus.
func (h *Hardware) Bus() hal.RegisterBus { return h.bus }

// Sdn returns the shutdown line.
func (h *Hardware) Sdn() hal.OutputPin { return h.sdn }

// Irq returns the interrupt line.
func (h *Hardware) Irq() hal.IrqPin { return h.irq }

// Close releases every resource Open claimed. The first error wins, later
// resources are still released.
func (h *Hardware) Close() error {
	var firstErr error
	if h.bus != nil {
		if err := h.bus.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.bus = nil
	}
	if h.irq != nil {
		if err := h.irq.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.irq = nil
	}
	if h.sdn != nil {
		if err := h.sdn.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.sdn = nil
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.chip = nil
	}
	return firstErr
}
