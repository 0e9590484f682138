package s2lp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

func irqMaskRegs(bus *testBus) IrqStatus {
	return IrqStatus(binary.BigEndian.Uint32([]byte{
		bus.regs[IRQ_MASK3], bus.regs[IRQ_MASK2], bus.regs[IRQ_MASK1], bus.regs[IRQ_MASK0],
	}))
}

func TestSendPacketHappyPath(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	payload := []byte("Hello from Go!!")
	tx, err := r.SendPacket(nil, payload)
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if r.State() != StateTx {
		t.Errorf("expected Tx, got %s", r.State())
	}
	if !bytes.Equal(bus.txFifo, payload) {
		t.Errorf("expected the payload staged in the TX FIFO, got %q", bus.txFifo)
	}
	// no address byte configured, the length field counts the payload only
	if got := uint16(bus.regs[PCKTLEN1])<<8 | uint16(bus.regs[PCKTLEN0]); got != uint16(len(payload)) {
		t.Errorf("expected packet length %d, got %d", len(payload), got)
	}
	cmds := bus.commands()
	if len(cmds) == 0 || cmds[len(cmds)-1] != CMD_TX {
		t.Errorf("expected TX as the final strobe, got %#v", cmds)
	}
	if got := irqMaskRegs(bus); got != txIrqMask {
		t.Errorf("expected irq mask %#08x, got %#08x", uint32(txIrqMask), uint32(got))
	}

	bus.irqQueue = []uint32{uint32(IrqTxDataSent)}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	if res != TxOk {
		t.Fatalf("expected TxOk, got %s", res)
	}

	// a repeated Wait hands back the latched result without bus traffic
	before := len(bus.ops)
	if res, err := tx.Wait(context.Background()); err != nil || res != TxOk {
		t.Errorf("expected the latched TxOk, got %s, %v", res, err)
	}
	if len(bus.ops) != before {
		t.Error("idempotent Wait touched the bus")
	}

	if err := tx.Finish(); err != nil {
		t.Fatalf("finish failed: %s", err)
	}
	if r.State() != StateReady {
		t.Errorf("expected Ready after Finish, got %s", r.State())
	}
	if _, err := tx.Wait(context.Background()); !errors.Is(err, ErrTransferDone) {
		t.Errorf("expected ErrTransferDone from Wait, got %v", err)
	}
	if err := tx.Finish(); !errors.Is(err, ErrTransferDone) {
		t.Errorf("expected ErrTransferDone from Finish, got %v", err)
	}
}

func TestSendTerminalCauses(t *testing.T) {
	tests := []struct {
		status IrqStatus
		want   TxResult
	}{
		{IrqTxDataSent, TxOk},
		{IrqMaxReTxReach, TxMaxReTxReached},
		{IrqMaxBoCcaReach, TxCcaBackoffReached},
	}
	for _, tc := range tests {
		r, bus, _ := formattedTestRadio(t, testBasicFormat())
		tx, err := r.SendPacket(nil, []byte{0xAB})
		if err != nil {
			t.Fatalf("send failed: %s", err)
		}
		bus.irqQueue = []uint32{uint32(tc.status)}
		res, err := tx.Wait(context.Background())
		if err != nil {
			t.Errorf("status %#08x: wait failed: %s", uint32(tc.status), err)
			continue
		}
		if res != tc.want {
			t.Errorf("status %#08x: expected %s, got %s", uint32(tc.status), tc.want, res)
		}
		if err := tx.Finish(); err != nil {
			t.Errorf("status %#08x: finish failed: %s", uint32(tc.status), err)
		}
		if r.State() != StateReady {
			t.Errorf("status %#08x: expected Ready, got %s", uint32(tc.status), r.State())
		}
	}
}

func TestSendRefillsTheFifo(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	bus.txChunks = []int{6, 5}
	payload := make([]byte, 14)
	for i := range payload {
		payload[i] = byte(i)
	}
	tx, err := r.SendPacket(nil, payload)
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if len(bus.txFifo) != 6 {
		t.Fatalf("expected 6 bytes staged, got %d", len(bus.txFifo))
	}
	bus.irqQueue = []uint32{
		uint32(IrqTxFifoAlmostEmpty),
		uint32(IrqTxFifoAlmostEmpty),
		uint32(IrqTxDataSent),
	}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	if res != TxOk {
		t.Fatalf("expected TxOk, got %s", res)
	}
	if !bytes.Equal(bus.txFifo, payload) {
		t.Errorf("expected the full payload after the refills, got %v", bus.txFifo)
	}
	if got := bus.fifoWrites(); got != 3 {
		t.Errorf("expected 3 FIFO bursts, got %d", got)
	}
}

func TestSendRefillAndCompletionShareOneStatus(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	bus.txChunks = []int{8}
	payload := make([]byte, 15)
	tx, err := r.SendPacket(nil, payload)
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	// the status carries the refill request and the terminal cause at once
	bus.irqQueue = []uint32{uint32(IrqTxFifoAlmostEmpty | IrqTxDataSent)}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	if res != TxOk {
		t.Fatalf("expected TxOk, got %s", res)
	}
	if len(bus.txFifo) != len(payload) {
		t.Errorf("expected the refill before completion, %d of %d bytes written",
			len(bus.txFifo), len(payload))
	}
}

func TestSendFifoErrorAborts(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	tx, err := r.SendPacket(nil, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	bus.irqQueue = []uint32{uint32(IrqTxFifoError)}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	if res != TxFifoError {
		t.Fatalf("expected TxFifoError, got %s", res)
	}
	if !bus.abortedWith(CMD_FLUSHTXFIFO) {
		t.Error("expected SABORT followed by a TX FIFO flush")
	}
	if err := tx.Finish(); err != nil {
		t.Fatalf("finish failed: %s", err)
	}
	if r.State() != StateReady {
		t.Errorf("expected Ready, got %s", r.State())
	}
}

func TestFinishRequiresATerminalResult(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	tx, err := r.SendPacket(nil, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if err := tx.Finish(); !errors.Is(err, ErrTransferPending) {
		t.Fatalf("expected ErrTransferPending, got %v", err)
	}
	if r.State() != StateTx {
		t.Errorf("expected the transfer to keep the radio, got %s", r.State())
	}
	if err := tx.Abort(); err != nil {
		t.Fatalf("abort failed: %s", err)
	}
	if !bus.abortedWith(CMD_FLUSHTXFIFO) {
		t.Error("expected SABORT followed by a TX FIFO flush")
	}
	if r.State() != StateReady {
		t.Errorf("expected Ready after Abort, got %s", r.State())
	}
	if err := tx.Abort(); !errors.Is(err, ErrTransferDone) {
		t.Errorf("expected ErrTransferDone, got %v", err)
	}
}

func TestWaitTimeoutChecksTheChipState(t *testing.T) {
	r, bus, irq := formattedTestRadio(t, testBasicFormat())
	tx, err := r.SendPacket(nil, []byte{1})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	// one interrupt deadline with the chip still transmitting, then done
	irq.lowScripts = []func(context.Context) error{irqTimedOut}
	bus.irqQueue = []uint32{uint32(IrqTxDataSent)}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	if res != TxOk {
		t.Fatalf("expected TxOk after the benign timeout, got %s", res)
	}
	sawStateRead := false
	for _, op := range bus.ops {
		if op.kind == "r" && op.addr == MC_STATE0 {
			sawStateRead = true
		}
	}
	if !sawStateRead {
		t.Error("expected a chip state inspection after the interrupt timeout")
	}
}

func TestWaitGivesUpInLockState(t *testing.T) {
	r, bus, irq := formattedTestRadio(t, testBasicFormat())
	tx, err := r.SendPacket(nil, []byte{1})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	bus.setChipState(ChipStateLockSt)
	irq.lowScripts = []func(context.Context) error{irqTimedOut}
	if _, err := tx.Wait(context.Background()); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
	// the transfer is still live and Abort recovers the radio
	if err := tx.Abort(); err != nil {
		t.Fatalf("abort failed: %s", err)
	}
	if r.State() != StateReady {
		t.Errorf("expected Ready after Abort, got %s", r.State())
	}
}

func TestWaitResumesAfterCancellation(t *testing.T) {
	r, bus, _ := formattedTestRadio(t, testBasicFormat())
	tx, err := r.SendPacket(nil, []byte{1})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tx.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// the transmission kept running and can be waited on again
	bus.irqQueue = []uint32{uint32(IrqTxDataSent)}
	res, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("second wait failed: %s", err)
	}
	if res != TxOk {
		t.Errorf("expected TxOk, got %s", res)
	}
}

func TestSendPacketPreconditions(t *testing.T) {
	r, _, _ := readyTestRadio(t)
	if _, err := r.SendPacket(nil, []byte{1}); !errors.Is(err, ErrNoFormat) {
		t.Errorf("expected ErrNoFormat, got %v", err)
	}

	r2, _, _ := formattedTestRadio(t, testBasicFormat())
	if _, err := r2.SendPacket(nil, []byte{1}); err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if _, err := r2.SendPacket(nil, []byte{2}); !isStateError(err) {
		t.Errorf("expected a second send to be rejected in flight, got %v", err)
	}
}
