package s2lp

import (
	"context"
	"fmt"
	"time"
)

// RadioConfig carries the physical RF parameters programmed by Init.
type RadioConfig struct {
	// XtalFrequency is the reference crystal in Hz. Crystals above 30 MHz
	// run the digital domain at half rate.
	XtalFrequency uint32
	// BaseFrequency is the carrier in Hz. It must sit in the high band
	// (860-940 MHz) or the middle band (430-470 MHz).
	BaseFrequency uint32
	// Modulation selects the modulation scheme.
	Modulation Modulation
	// Datarate is the air datarate in bits per second.
	Datarate uint32
	// FrequencyDeviation is the FSK deviation in Hz.
	FrequencyDeviation uint32
	// Bandwidth is the RX channel filter bandwidth in Hz.
	Bandwidth uint32
}

// DefaultRadioConfig mirrors the usual evaluation kit setup: 50 MHz TCXO,
// 868 MHz carrier, 2-FSK at 38.4 kbps.
func DefaultRadioConfig() RadioConfig {
	return RadioConfig{
		XtalFrequency:      50_000_000,
		BaseFrequency:      868_000_000,
		Modulation:         Modulation2FSK,
		Datarate:           38_400,
		FrequencyDeviation: 20_000,
		Bandwidth:          100_000,
	}
}

func (c RadioConfig) validate() error {
	if c.XtalFrequency < 24_000_000 || c.XtalFrequency > 52_000_000 {
		return &ConfigError{
			Field:  "XtalFrequency",
			Reason: fmt.Sprintf("%d Hz is not a supported crystal, expected 24-52 MHz", c.XtalFrequency),
		}
	}
	if _, ok := bandOf(c.BaseFrequency); !ok {
		return &ConfigError{
			Field:  "BaseFrequency",
			Reason: fmt.Sprintf("frequency %d Hz is outside the 860-940 MHz and 430-470 MHz bands", c.BaseFrequency),
		}
	}
	switch c.Modulation {
	case Modulation2FSK, Modulation4FSK, Modulation2GFSKBT1, Modulation4GFSKBT1,
		ModulationASKOOK, ModulationUnmodulated, Modulation2GFSKBT05, Modulation4GFSKBT05:
	default:
		return &ConfigError{
			Field:  "Modulation",
			Reason: fmt.Sprintf("0x%X is not a modulation the chip knows", uint8(c.Modulation)),
		}
	}
	fdig := digitalFrequency(c.XtalFrequency)
	if c.Datarate < minDatarate || c.Datarate > maxDatarate(fdig) {
		return &ConfigError{
			Field:  "Datarate",
			Reason: fmt.Sprintf("%d bps is outside %d-%d bps", c.Datarate, minDatarate, maxDatarate(fdig)),
		}
	}
	if c.FrequencyDeviation < minDeviation(c.XtalFrequency) || c.FrequencyDeviation > maxDeviation(c.XtalFrequency) {
		return &ConfigError{
			Field:  "FrequencyDeviation",
			Reason: fmt.Sprintf("%d Hz is outside %d-%d Hz", c.FrequencyDeviation, minDeviation(c.XtalFrequency), maxDeviation(c.XtalFrequency)),
		}
	}
	if lo, hi := channelFilterBounds(fdig); c.Bandwidth < lo || c.Bandwidth > hi {
		return &ConfigError{
			Field:  "Bandwidth",
			Reason: fmt.Sprintf("%d Hz is outside the %d-%d Hz filter range", c.Bandwidth, lo, hi),
		}
	}
	return nil
}

// porBootDelay is the worst case time from shutdown release to a working
// register file, used when GPIO0 is not available as power-on signal.
const porBootDelay = 2 * time.Millisecond

// Init resets the chip and programs the RF configuration. Legal in
// Shutdown; on success the radio is Ready with no packet format chosen.
// A validation failure happens before any pin or bus traffic. Any later
// failure leaves the radio in Shutdown; the chip can be re-initialized
// with another Init call.
func (r *Radio) Init(ctx context.Context, cfg RadioConfig) error {
	if err := r.ensure("init", StateShutdown); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	// reset pulse: shutdown asserted at least 1 us, then released
	if err := r.sdn.SetHigh(); err != nil {
		return fmt.Errorf("failed to assert shutdown pin: %w", err)
	}
	r.delay.Delay(time.Microsecond)
	if err := r.sdn.SetLow(); err != nil {
		return fmt.Errorf("failed to release shutdown pin: %w", err)
	}

	// after reset GPIO0 signals power-on-reset completion; with the
	// interrupt line on another GPIO the worst case boot time has to do
	if r.irqGpio == Gpio0 {
		if err := r.irq.WaitForHigh(ctx); err != nil {
			return fmt.Errorf("failed to wait for power on reset: %w", err)
		}
	} else {
		r.delay.Delay(porBootDelay)
	}

	_, version, err := r.ll.DeviceInfo()
	if err != nil {
		return err
	}
	if version != deviceVersion {
		return fmt.Errorf("%w: version reads 0x%02X, want 0x%02X", ErrInit, version, deviceVersion)
	}

	// take the interrupt GPIO for the driver: nIRQ, active low
	if err := r.ll.Write8(uint8(r.irqGpio), gpioConfValue(GpioModeOutputLowPower, GpioSelectNirq)); err != nil {
		return err
	}

	fdig := digitalFrequency(cfg.XtalFrequency)
	if err := r.setClockDividers(cfg.XtalFrequency > digDomainXtalThresh); err != nil {
		return err
	}
	if err := r.programRf(cfg, fdig); err != nil {
		return err
	}
	if err := r.calibrateRco(); err != nil {
		return err
	}

	// keep FIFO content across low power states, CSMA backoff relies on
	// the staged packet surviving
	if err := r.ll.Modify8(PM_CONF0, 0, PM_CONF0_SLEEP_MODE_SEL); err != nil {
		return err
	}

	r.xtal = cfg.XtalFrequency
	r.fdig = fdig
	r.format = nil
	r.state = StateReady
	r.logf("init done: carrier %d Hz, fdig %d Hz", cfg.BaseFrequency, fdig)
	return nil
}

// setClockDividers enables or disables the digital clock divider and the
// PLL reference divider. The chip only accepts the change in STANDBY, and
// the state register is polled until each transition is acknowledged.
func (r *Radio) setClockDividers(enable bool) error {
	if err := r.ll.Command(CMD_STANDBY); err != nil {
		return err
	}
	if err := r.waitForChipState(ChipStateStandby); err != nil {
		return err
	}
	var err error
	if enable {
		err = r.ll.Modify8(XO_RCO_CONF1, XO_RCO_CONF1_PD_CLKDIV, 0)
	} else {
		err = r.ll.Modify8(XO_RCO_CONF1, 0, XO_RCO_CONF1_PD_CLKDIV)
	}
	if err != nil {
		return err
	}
	if enable {
		err = r.ll.Modify8(XO_RCO_CONF0, 0, XO_RCO_CONF0_REFDIV)
	} else {
		err = r.ll.Modify8(XO_RCO_CONF0, XO_RCO_CONF0_REFDIV, 0)
	}
	if err != nil {
		return err
	}
	if err := r.ll.Command(CMD_READY); err != nil {
		return err
	}
	return r.waitForChipState(ChipStateReady)
}

// programRf runs the parameter fitters and writes their register values.
func (r *Radio) programRf(cfg RadioConfig, fdig uint32) error {
	if err := r.ll.Write8(IF_OFFSET_ANA, ifOffsetAna(cfg.XtalFrequency)); err != nil {
		return err
	}
	if err := r.ll.Write8(IF_OFFSET_DIG, ifOffsetDig(fdig)); err != nil {
		return err
	}

	drM, drE := fitDatarate(fdig, cfg.Datarate)
	if err := r.ll.Write(MOD4, []byte{byte(drM >> 8), byte(drM)}); err != nil {
		return err
	}
	if err := r.ll.Write8(MOD2, uint8(cfg.Modulation)<<MOD2_MOD_TYPE_SHIFT|drE&MOD2_DATARATE_E); err != nil {
		return err
	}

	devM, devE := fitDeviation(cfg.XtalFrequency, cfg.FrequencyDeviation)
	if err := r.ll.Modify8(MOD1, MOD1_FDEV_E, devE&MOD1_FDEV_E); err != nil {
		return err
	}
	if err := r.ll.Write8(MOD0, devM); err != nil {
		return err
	}

	bwM, bwE := fitChannelFilter(fdig, cfg.Bandwidth)
	if err := r.ll.Write8(CHFLT, bwM<<CHFLT_M_SHIFT|bwE&CHFLT_E); err != nil {
		return err
	}

	refdiv := refDivider(cfg.XtalFrequency)
	synt := fitSynthesizer(cfg.XtalFrequency, cfg.BaseFrequency, refdiv)
	isel, split := chargePump(cfg.XtalFrequency, cfg.BaseFrequency, refdiv)
	synt3 := isel<<PLL_CP_ISEL_SHIFT | uint8(synt>>24)&0x0F
	if band, _ := bandOf(cfg.BaseFrequency); band == bandMiddle {
		synt3 |= SYNT3_BS
	}
	if err := r.ll.Write(SYNT3, []byte{synt3, byte(synt >> 16), byte(synt >> 8), byte(synt)}); err != nil {
		return err
	}
	var splitBit uint8
	if split {
		splitBit = SYNTH_CONFIG2_PLL_PFD_SPLIT_EN
	}
	return r.ll.Modify8(SYNTH_CONFIG2, SYNTH_CONFIG2_PLL_PFD_SPLIT_EN, splitBit)
}

// calibrateRco starts the RC oscillator calibration and waits for the
// calibrator to report success.
func (r *Radio) calibrateRco() error {
	if err := r.ll.Modify8(XO_RCO_CONF0, 0, XO_RCO_CONF0_RCO_CALIBRATION); err != nil {
		return err
	}
	for i := 0; i < statePollAttempts; i++ {
		v, err := r.ll.Read8(MC_STATE1)
		if err != nil {
			return err
		}
		if v&MC_STATE1_ERROR_LOCK != 0 {
			return ErrRcoLock
		}
		if v&MC_STATE1_RCCAL_OK != 0 {
			return nil
		}
		r.delay.Delay(statePollInterval)
	}
	return fmt.Errorf("%w: calibration did not complete", ErrRcoLock)
}
