package s2lp

import (
	"encoding/binary"
	"fmt"
)

// CcaPeriod is the length of one clear channel observation in bit times.
type CcaPeriod uint8

const (
	CcaPeriodBits64    CcaPeriod = 0x0
	CcaPeriodBits640   CcaPeriod = 0x1
	CcaPeriodBits4096  CcaPeriod = 0x2
	CcaPeriodBits65536 CcaPeriod = 0x3
)

// CsmaCaMode is the clear channel assessment strategy SendPacket arms.
// CsmaOff, CsmaPersistent and CsmaBackoff are the possible modes.
type CsmaCaMode interface {
	// program writes the CSMA registers and reports which PROTOCOL1
	// control bits have to be set.
	program(ll *Registers) (uint8, error)
}

// CsmaOff transmits immediately without looking at the channel.
type CsmaOff struct{}

func (CsmaOff) program(*Registers) (uint8, error) { return 0, nil }

// CsmaPersistent keeps observing the channel until it is free and only
// then transmits. Only aborting the transfer ends the attempt early.
type CsmaPersistent struct {
	// CcaPeriod is the length of one observation period.
	CcaPeriod CcaPeriod
	// CcaCount is how many consecutive periods must be free before the
	// channel counts as free, 1 to 15.
	CcaCount uint8
}

func (m CsmaPersistent) program(ll *Registers) (uint8, error) {
	if m.CcaCount < 1 || m.CcaCount > 15 {
		panic(fmt.Sprintf("s2lp: CcaCount must be between 1 and 15, got %d", m.CcaCount))
	}
	// nbackoff_max is 1 rather than 0 so max_bo_cca_reach never fires.
	if err := ll.Write8(CSMA_CONF0, m.CcaCount<<CSMA_CONF0_CCA_LEN_SHIFT|1); err != nil {
		return 0, err
	}
	if err := ll.Write8(CSMA_CONF1, uint8(m.CcaPeriod)&CSMA_CONF1_CCA_PERIOD); err != nil {
		return 0, err
	}
	return PROTOCOL1_CSMA_ON | PROTOCOL1_CSMA_PERS_ON, nil
}

// CsmaBackoff observes the channel and sleeps a random backoff time
// whenever it is busy. The maximum backoff doubles on every retry; once
// MaxBackoffs is exhausted the transmission resolves to
// TxCcaBackoffReached.
type CsmaBackoff struct {
	// CcaPeriod is the length of one observation period.
	CcaPeriod CcaPeriod
	// CcaCount is how many consecutive periods must be free before the
	// channel counts as free, 1 to 15.
	CcaCount uint8
	// MaxBackoffs is how many backoffs the engine does before it gives
	// up, 0 to 7.
	MaxBackoffs uint8
	// BackoffPrescaler divides the RCO clock that paces the backoff
	// timer, 2 to 64.
	BackoffPrescaler uint8
	// Seed, when non zero, reseeds the backoff PRNG before every
	// transmission instead of leaving the chip's automatic seeding.
	Seed uint16
}

func (m CsmaBackoff) program(ll *Registers) (uint8, error) {
	if m.CcaCount < 1 || m.CcaCount > 15 {
		panic(fmt.Sprintf("s2lp: CcaCount must be between 1 and 15, got %d", m.CcaCount))
	}
	if m.BackoffPrescaler < 2 || m.BackoffPrescaler > 64 {
		panic(fmt.Sprintf("s2lp: BackoffPrescaler must be between 2 and 64, got %d", m.BackoffPrescaler))
	}
	if m.MaxBackoffs > 7 {
		panic(fmt.Sprintf("s2lp: MaxBackoffs must be between 0 and 7, got %d", m.MaxBackoffs))
	}

	if err := ll.Write8(CSMA_CONF0, m.CcaCount<<CSMA_CONF0_CCA_LEN_SHIFT|m.MaxBackoffs&CSMA_CONF0_NBACKOFF_MAX); err != nil {
		return 0, err
	}
	// The chip applies the prescaler plus one.
	conf1 := (m.BackoffPrescaler-1)<<CSMA_CONF1_BU_PRSC_SHIFT | uint8(m.CcaPeriod)&CSMA_CONF1_CCA_PERIOD
	if err := ll.Write8(CSMA_CONF1, conf1); err != nil {
		return 0, err
	}

	bits := PROTOCOL1_CSMA_ON
	if m.Seed != 0 {
		var seed [2]byte
		binary.BigEndian.PutUint16(seed[:], m.Seed)
		if err := ll.Write(CSMA_CONF3, seed[:]); err != nil {
			return 0, err
		}
		bits |= PROTOCOL1_SEED_RELOAD
	}
	return bits, nil
}

// SetCsmaCa selects the clear channel assessment mode used by later
// transmissions. Legal in Ready. Out of range mode parameters are
// programmer errors and panic instead of returning.
func (r *Radio) SetCsmaCa(mode CsmaCaMode) error {
	if err := r.ensure("set CSMA/CA", StateReady); err != nil {
		return err
	}
	bits, err := mode.program(&r.ll)
	if err != nil {
		return fmt.Errorf("failed to program CSMA/CA: %w", err)
	}
	const ctl = PROTOCOL1_CSMA_ON | PROTOCOL1_CSMA_PERS_ON | PROTOCOL1_SEED_RELOAD
	if err := r.ll.Modify8(PROTOCOL1, ctl, bits); err != nil {
		return fmt.Errorf("failed to enable CSMA/CA: %w", err)
	}
	return nil
}
