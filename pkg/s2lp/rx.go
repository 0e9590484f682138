package s2lp

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RxMode selects how the receiver runs. The zero value keeps the receiver
// on until a packet arrives or the transfer is aborted.
type RxMode struct {
	// Timeout stops the receiver after a fixed time when set.
	Timeout *RxTimeout
}

// RxTimeout configures the hardware RX timer.
type RxTimeout struct {
	// Timeout is how long the receiver stays on. The timer tops out
	// around 3 seconds; longer requests are clamped and logged.
	Timeout time.Duration
	// Mask selects the signal quality conditions that keep the timer
	// from expiring mid reception. The zero value means RxTimeoutSqi.
	Mask RxTimeoutMask
}

// RxTimeoutMask names the conditions that stop the RX timer. Bit 3
// selects OR instead of AND combining, the low bits select carrier
// sense, SQI and PQI.
type RxTimeoutMask uint8

const (
	// rxTimeoutDisabled turns the timer off entirely, the receiver then
	// runs until aborted.
	rxTimeoutDisabled RxTimeoutMask = 0b0000
	// RxTimeoutNone lets the timeout expire unconditionally, even while
	// a packet is actively being received.
	RxTimeoutNone RxTimeoutMask = 0b1000
	// RxTimeoutRssi stops the timer while RSSI is above threshold.
	RxTimeoutRssi RxTimeoutMask = 0b0100
	// RxTimeoutSqi stops the timer while SQI is above threshold.
	RxTimeoutSqi RxTimeoutMask = 0b0010
	// RxTimeoutPqi stops the timer while PQI is above threshold.
	RxTimeoutPqi RxTimeoutMask = 0b0001

	RxTimeoutRssiAndSqi RxTimeoutMask = 0b0110
	RxTimeoutRssiAndPqi RxTimeoutMask = 0b0101
	RxTimeoutSqiAndPqi  RxTimeoutMask = 0b0011
	RxTimeoutAll        RxTimeoutMask = 0b0111
	RxTimeoutRssiOrSqi  RxTimeoutMask = 0b1110
	RxTimeoutRssiOrPqi  RxTimeoutMask = 0b1101
	RxTimeoutSqiOrPqi   RxTimeoutMask = 0b1011
	RxTimeoutAny        RxTimeoutMask = 0b1111
)

func (t RxTimeout) apply(r *Radio) error {
	var orSel uint8
	if t.Mask&0b1000 != 0 {
		orSel = PCKT_FLT_RX_TIMEOUT_AND_OR_SEL
	}
	if err := r.ll.Modify8(PCKT_FLT_OPTIONS, PCKT_FLT_RX_TIMEOUT_AND_OR_SEL, orSel); err != nil {
		return err
	}

	var qual uint8
	if t.Mask&0b0100 != 0 {
		qual |= PROTOCOL2_CS_TIMEOUT_MASK
	}
	if t.Mask&0b0010 != 0 {
		qual |= PROTOCOL2_SQI_TIMEOUT_MASK
	}
	if t.Mask&0b0001 != 0 {
		qual |= PROTOCOL2_PQI_TIMEOUT_MASK
	}
	const qualBits = PROTOCOL2_CS_TIMEOUT_MASK | PROTOCOL2_SQI_TIMEOUT_MASK | PROTOCOL2_PQI_TIMEOUT_MASK
	if err := r.ll.Modify8(PROTOCOL2, qualBits, qual); err != nil {
		return err
	}

	us := t.Timeout.Microseconds()
	if us < 0 {
		us = 0
	}
	if us > math.MaxUint32 {
		us = math.MaxUint32
	}
	prescaler, counter, overflow := fitRxTimer(uint32(us), r.fdig)
	if overflow {
		r.logf("s2lp: rx timeout %s is longer than the timer supports, using the maximum", t.Timeout)
	}
	if err := r.ll.Write8(TIMERS5, counter); err != nil {
		return err
	}
	return r.ll.Write8(TIMERS4, prescaler)
}

// fitRxTimer picks the smallest prescaler and the matching counter so
// the programmed RX timer runs for at least timeoutUs. overflow reports
// that the request exceeds the timer range and the maximum was used.
func fitRxTimer(timeoutUs uint32, fdig uint32) (prescaler, counter uint8, overflow bool) {
	tScaled := uint64(timeoutUs) * uint64(fdig) / 1210

	// Divide by 1e6 as late as possible to keep the precision up.
	const scale = 1_000_000
	const maxCounter = 255

	p := divCeil(tScaled, maxCounter*scale)
	if p > 1 {
		p--
	} else {
		p = 1
	}
	c := divCeil(tScaled, (p+1)*scale) + 1
	if c > 255 {
		p++
		c = divCeil(tScaled, (p+1)*scale) + 1
	}

	overflow = p > 255
	if p > 255 {
		p = 255
	}
	if c > 255 {
		c = 255
	}
	return uint8(p), uint8(c), overflow
}

// rssiToDBm converts a raw RSSI register reading to dBm.
func rssiToDBm(raw uint8) int16 { return int16(raw) - 146 }

// RxStatus classifies how a reception ended.
type RxStatus int

const (
	// RxOk means a packet was received in full.
	RxOk RxStatus = iota
	// RxFifoError means the RX FIFO overflowed before it was drained.
	RxFifoError
	// RxDiscarded means the packet was dropped by the packet filter.
	RxDiscarded
	// RxCrcError means the packet arrived with a bad CRC.
	RxCrcError
	// RxTooBigForBuffer means the packet did not fit the caller's buffer.
	RxTooBigForBuffer
	// RxTimedOut means the RX timer expired before a packet arrived.
	RxTimedOut
)

func (s RxStatus) String() string {
	switch s {
	case RxOk:
		return "ok"
	case RxFifoError:
		return "fifo error"
	case RxDiscarded:
		return "discarded"
	case RxCrcError:
		return "crc error"
	case RxTooBigForBuffer:
		return "too big for buffer"
	case RxTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// RxResult is the terminal outcome of a reception. PacketSize, RSSI and
// Meta are only meaningful when Status is RxOk.
type RxResult struct {
	Status RxStatus
	// PacketSize is the number of payload bytes written to the buffer.
	PacketSize int
	// RSSI of the received packet in dBm, captured at the sync word.
	RSSI int16
	// Meta holds the format specific packet fields; type assert it to
	// the metadata type of the configured format.
	Meta RxMetaData
}

const rxIrqMask = IrqRxDataReady | IrqRxFifoAlmostFull | IrqRxFifoError |
	IrqRxTimeout | IrqRxDataDisc | IrqCrcError | IrqRxSniffTimeout

// StartReceive programs the RX timer, arms the RX interrupts and starts
// the receiver. Received payload lands in buf; a packet larger than buf
// resolves the transfer to RxTooBigForBuffer. Legal in Ready once a
// format is configured.
func (r *Radio) StartReceive(buf []byte, mode RxMode) (*RxTransfer, error) {
	if err := r.ensure("start receive", StateReady); err != nil {
		return nil, err
	}
	if r.format == nil {
		return nil, ErrNoFormat
	}

	var to RxTimeout
	if mode.Timeout != nil {
		to = *mode.Timeout
		if to.Mask == rxTimeoutDisabled {
			to.Mask = RxTimeoutSqi
		}
	}
	if err := to.apply(r); err != nil {
		return nil, fmt.Errorf("failed to program RX timeout: %w", err)
	}

	// Carrier sense blanking keeps sub threshold noise out of the FIFO.
	if err := r.ll.Modify8(ANT_SELECT_CONF, 0, ANT_SELECT_CS_BLANKING); err != nil {
		return nil, err
	}
	if err := r.ll.Command(CMD_FLUSHRXFIFO); err != nil {
		return nil, err
	}
	// Clear stale causes before arming the mask.
	if _, err := r.ll.IrqStatus(); err != nil {
		return nil, err
	}
	if err := r.ll.SetIrqMask(rxIrqMask); err != nil {
		return nil, err
	}
	r.logf("s2lp: starting receiver")
	if err := r.ll.Command(CMD_RX); err != nil {
		return nil, err
	}
	r.state = StateRx
	return &RxTransfer{r: r, buf: buf}, nil
}

// RxTransfer is an in flight reception. Wait drives it to a terminal
// RxResult, Finish then returns the radio to Ready. Abort stops the
// receiver early.
type RxTransfer struct {
	r       *Radio
	buf     []byte
	written int
	done    bool
	closed  bool
	result  RxResult
}

// Wait blocks until the reception resolves. It is idempotent: once a
// terminal result was reached, calling it again returns the same result
// without bus traffic. Cancelling ctx leaves the receiver running; Wait
// can be called again, or Abort to stop it.
func (x *RxTransfer) Wait(ctx context.Context) (RxResult, error) {
	if x.closed {
		return RxResult{}, ErrTransferDone
	}
	if x.done {
		return x.result, nil
	}
	r := x.r
	for {
		if err := r.irq.WaitForLow(ctx); err != nil {
			return RxResult{}, fmt.Errorf("failed to wait for interrupt: %w", err)
		}

		status, err := r.ll.IrqStatus()
		if err != nil {
			return RxResult{}, err
		}
		r.logf("s2lp: rx irq status %#08x", uint32(status))

		const terminal = IrqRxDataDisc | IrqRxFifoError | IrqCrcError |
			IrqRxTimeout | IrqRxSniffTimeout
		if full := x.written == len(x.buf); full || status.Any(terminal) {
			if err := r.abortAndFlush(CMD_FLUSHRXFIFO); err != nil {
				return RxResult{}, err
			}
			switch {
			case full:
				return x.latch(RxResult{Status: RxTooBigForBuffer}), nil
			case status.Has(IrqRxFifoError):
				return x.latch(RxResult{Status: RxFifoError}), nil
			case status.Has(IrqCrcError):
				return x.latch(RxResult{Status: RxCrcError}), nil
			case status.Any(IrqRxTimeout | IrqRxSniffTimeout):
				return x.latch(RxResult{Status: RxTimedOut}), nil
			default:
				return x.latch(RxResult{Status: RxDiscarded}), nil
			}
		}

		if status.Any(IrqRxDataReady | IrqRxFifoAlmostFull) {
			n, err := r.ll.ReadFIFO(x.buf[x.written:])
			if err != nil {
				return RxResult{}, err
			}
			x.written += n
			r.logf("s2lp: received %d bytes, %d total", n, x.written)
		}

		if status.Has(IrqRxDataReady) {
			raw, err := r.ll.Read8(RSSI_LEVEL)
			if err != nil {
				return RxResult{}, err
			}
			meta, err := r.format.readRxMetaData(r)
			if err != nil {
				return RxResult{}, err
			}
			return x.latch(RxResult{
				Status:     RxOk,
				PacketSize: x.written,
				RSSI:       rssiToDBm(raw),
				Meta:       meta,
			}), nil
		}
	}
}

func (x *RxTransfer) latch(res RxResult) RxResult {
	x.done = true
	x.result = res
	return res
}

// Finish releases the transfer and returns the radio to Ready. It fails
// with ErrTransferPending until Wait has reached a terminal result; the
// transfer stays usable so the caller can Wait again.
func (x *RxTransfer) Finish() error {
	if x.closed {
		return ErrTransferDone
	}
	if !x.done {
		return ErrTransferPending
	}
	x.closed = true
	x.r.state = StateReady
	return nil
}

// Abort stops the receiver immediately, flushes the RX FIFO and returns
// the radio to Ready.
func (x *RxTransfer) Abort() error {
	if x.closed {
		return ErrTransferDone
	}
	if err := x.r.abortAndFlush(CMD_FLUSHRXFIFO); err != nil {
		return err
	}
	x.closed = true
	x.r.state = StateReady
	return nil
}
