package s2lp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxResult is the terminal outcome of a transmission.
type TxResult int

const (
	// TxOk means the packet went out.
	TxOk TxResult = iota
	// TxFifoError means the FIFO ran dry mid packet, usually because
	// refills could not keep up. The transmission was aborted.
	TxFifoError
	// TxMaxReTxReached means the retransmission limit was hit. The
	// packet was sent but never acknowledged.
	TxMaxReTxReached
	// TxCcaBackoffReached means the CSMA/CA engine gave up looking for a
	// quiet channel. The packet was not sent.
	TxCcaBackoffReached
)

func (t TxResult) String() string {
	switch t {
	case TxOk:
		return "ok"
	case TxFifoError:
		return "fifo error"
	case TxMaxReTxReached:
		return "max retransmissions reached"
	case TxCcaBackoffReached:
		return "CCA backoff limit reached"
	default:
		return "unknown"
	}
}

const txIrqMask = IrqTxFifoAlmostEmpty | IrqTxDataSent | IrqMaxReTxReach |
	IrqTxFifoError | IrqMaxBoCcaReach

// SendPacket programs the per packet registers, arms the TX interrupts
// and starts the transmission, honoring the configured CSMA/CA mode.
// Legal in Ready once a format is configured. The payload slice must stay
// untouched until the returned transfer is finished or aborted.
func (r *Radio) SendPacket(meta TxMetaData, payload []byte) (*TxTransfer, error) {
	if err := r.ensure("send packet", StateReady); err != nil {
		return nil, err
	}
	if r.format == nil {
		return nil, ErrNoFormat
	}
	if err := r.format.prepareSend(r, meta, len(payload)); err != nil {
		return nil, err
	}
	// Carrier sense blanking must be off for CSMA/CA to work.
	if err := r.ll.Modify8(ANT_SELECT_CONF, ANT_SELECT_CS_BLANKING, 0); err != nil {
		return nil, err
	}
	if err := r.ll.Command(CMD_FLUSHTXFIFO); err != nil {
		return nil, err
	}
	// Clear stale causes before arming the mask.
	if _, err := r.ll.IrqStatus(); err != nil {
		return nil, err
	}
	if err := r.ll.SetIrqMask(txIrqMask); err != nil {
		return nil, err
	}
	n, err := r.ll.WriteFIFO(payload)
	if err != nil {
		return nil, err
	}
	r.logf("s2lp: sending packet of %d bytes", len(payload))
	if err := r.ll.Command(CMD_TX); err != nil {
		return nil, err
	}
	r.state = StateTx
	return &TxTransfer{r: r, pending: payload[n:]}, nil
}

// TxTransfer is an in flight transmission. Wait drives it to a terminal
// TxResult, Finish then returns the radio to Ready. Abort gives up early.
type TxTransfer struct {
	r       *Radio
	pending []byte
	done    bool
	closed  bool
	result  TxResult
}

// One interrupt wait before the chip state is inspected for trouble.
const txWaitTimeout = 1000 * time.Millisecond

// Wait blocks until the transmission resolves, including any CSMA/CA
// backoff and retransmissions. It is idempotent: once a terminal result
// was reached, calling it again returns the same result without bus
// traffic. Cancelling ctx leaves the transmission running; Wait can be
// called again, or Abort to stop it.
func (t *TxTransfer) Wait(ctx context.Context) (TxResult, error) {
	if t.closed {
		return 0, ErrTransferDone
	}
	if t.done {
		return t.result, nil
	}
	r := t.r
	for {
		low, err := r.irqLowWithin(ctx, txWaitTimeout)
		if err != nil {
			return 0, err
		}
		if !low {
			st, rerr := r.ll.ChipState()
			if rerr != nil {
				return 0, fmt.Errorf("%w: %v", ErrBadState, rerr)
			}
			if st == ChipStateLockSt {
				return 0, fmt.Errorf("%w: transmission stuck in %s", ErrBadState, st)
			}
			r.logf("s2lp: tx wait timed out in chip state %s", st)
			continue
		}

		status, err := r.ll.IrqStatus()
		if err != nil {
			return 0, err
		}
		r.logf("s2lp: tx irq status %#08x", uint32(status))

		if status.Has(IrqTxFifoError) {
			if err := r.abortAndFlush(CMD_FLUSHTXFIFO); err != nil {
				return 0, err
			}
			return t.latch(TxFifoError), nil
		}
		// One status read can carry a refill request and a terminal
		// cause together; neither may be lost.
		if status.Has(IrqTxFifoAlmostEmpty) {
			n, err := r.ll.WriteFIFO(t.pending)
			if err != nil {
				return 0, err
			}
			t.pending = t.pending[n:]
		}
		switch {
		case status.Has(IrqTxDataSent):
			return t.latch(TxOk), nil
		case status.Has(IrqMaxReTxReach):
			return t.latch(TxMaxReTxReached), nil
		case status.Has(IrqMaxBoCcaReach):
			return t.latch(TxCcaBackoffReached), nil
		}
	}
}

func (t *TxTransfer) latch(res TxResult) TxResult {
	t.done = true
	t.result = res
	return res
}

// Finish releases the transfer and returns the radio to Ready. It fails
// with ErrTransferPending until Wait has reached a terminal result; the
// transfer stays usable so the caller can Wait again.
func (t *TxTransfer) Finish() error {
	if t.closed {
		return ErrTransferDone
	}
	if !t.done {
		return ErrTransferPending
	}
	t.closed = true
	t.r.state = StateReady
	return nil
}

// Abort stops the transmission immediately, flushes the TX FIFO and
// returns the radio to Ready.
func (t *TxTransfer) Abort() error {
	if t.closed {
		return ErrTransferDone
	}
	if err := t.r.abortAndFlush(CMD_FLUSHTXFIFO); err != nil {
		return err
	}
	t.closed = true
	t.r.state = StateReady
	return nil
}

// irqLowWithin waits for the interrupt line to assert, giving up after
// timeout. It reports false on timeout so the caller can inspect the chip
// and fails only on ctx cancellation or a pin error.
func (r *Radio) irqLowWithin(ctx context.Context, timeout time.Duration) (bool, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := r.irq.WaitForLow(tctx)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, fmt.Errorf("failed to wait for interrupt: %w", err)
	}
}
