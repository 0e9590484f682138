package s2lp

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// busOp is one recorded bus access.
type busOp struct {
	kind string // "r", "w", "c", "wf", "rf"
	addr uint8
	n    int
}

// testBus emulates the chip side of the register bus. Reads and writes
// land in a flat register file, commands move the chip state the way the
// real part does, and each read of the interrupt status registers replays
// the next entry of a scripted queue.
type testBus struct {
	regs [256]uint8
	ops  []busOp

	// follow makes commands update MC_STATE0 immediately.
	follow bool

	// irqQueue feeds IRQ_STATUS3 reads, zero once drained.
	irqQueue []uint32

	// txFifo accumulates FIFO writes; txChunks limits how much a single
	// write may take, modelling a partially full FIFO.
	txFifo   []byte
	txChunks []int

	// rxData is what the fake chip received; rxChunks limits how much a
	// single read hands out.
	rxData   []byte
	rxChunks []int

	readErrs  map[uint8]error
	writeErrs map[uint8]error
}

func newTestBus() *testBus {
	b := &testBus{
		follow:    true,
		readErrs:  map[uint8]error{},
		writeErrs: map[uint8]error{},
	}
	b.regs[DEVICE_INFO1] = devicePartNumber
	b.regs[DEVICE_INFO0] = deviceVersion
	b.regs[MC_STATE1] = MC_STATE1_RCCAL_OK
	b.setChipState(ChipStateReady)
	return b
}

func (b *testBus) setChipState(st ChipState) {
	b.regs[MC_STATE0] = uint8(st)<<1 | 1
}

func (b *testBus) ReadRegister(addr uint8, buf []byte) error {
	if err := b.readErrs[addr]; err != nil {
		return err
	}
	b.ops = append(b.ops, busOp{kind: "r", addr: addr, n: len(buf)})
	if addr == IRQ_STATUS3 && len(buf) == 4 {
		var status uint32
		if len(b.irqQueue) > 0 {
			status = b.irqQueue[0]
			b.irqQueue = b.irqQueue[1:]
		}
		binary.BigEndian.PutUint32(buf, status)
		return nil
	}
	for i := range buf {
		buf[i] = b.regs[addr+uint8(i)]
	}
	return nil
}

func (b *testBus) WriteRegister(addr uint8, data []byte) error {
	if err := b.writeErrs[addr]; err != nil {
		return err
	}
	b.ops = append(b.ops, busOp{kind: "w", addr: addr, n: len(data)})
	for i, v := range data {
		b.regs[addr+uint8(i)] = v
	}
	return nil
}

func (b *testBus) DispatchCommand(code uint8) error {
	b.ops = append(b.ops, busOp{kind: "c", addr: code})
	if !b.follow {
		return nil
	}
	switch code {
	case CMD_STANDBY:
		b.setChipState(ChipStateStandby)
	case CMD_READY, CMD_SABORT:
		b.setChipState(ChipStateReady)
	case CMD_TX:
		b.setChipState(ChipStateTx)
	case CMD_RX:
		b.setChipState(ChipStateRx)
	}
	return nil
}

func (b *testBus) WriteFIFO(p []byte) (int, error) {
	n := len(p)
	if len(b.txChunks) > 0 {
		if c := b.txChunks[0]; c < n {
			n = c
		}
		b.txChunks = b.txChunks[1:]
	}
	b.txFifo = append(b.txFifo, p[:n]...)
	b.ops = append(b.ops, busOp{kind: "wf", n: n})
	return n, nil
}

func (b *testBus) ReadFIFO(p []byte) (int, error) {
	n := len(p)
	if len(b.rxData) < n {
		n = len(b.rxData)
	}
	if len(b.rxChunks) > 0 {
		if c := b.rxChunks[0]; c < n {
			n = c
		}
		b.rxChunks = b.rxChunks[1:]
	}
	copy(p, b.rxData[:n])
	b.rxData = b.rxData[n:]
	b.ops = append(b.ops, busOp{kind: "rf", n: n})
	return n, nil
}

// commands lists the dispatched command codes in order.
func (b *testBus) commands() []uint8 {
	var cmds []uint8
	for _, op := range b.ops {
		if op.kind == "c" {
			cmds = append(cmds, op.addr)
		}
	}
	return cmds
}

// abortedWith reports whether SABORT was dispatched with the given flush
// command right behind it.
func (b *testBus) abortedWith(flush uint8) bool {
	cmds := b.commands()
	for i, c := range cmds {
		if c == CMD_SABORT && i+1 < len(cmds) && cmds[i+1] == flush {
			return true
		}
	}
	return false
}

// writesTo counts the register writes that touched addr.
func (b *testBus) writesTo(addr uint8) int {
	count := 0
	for _, op := range b.ops {
		if op.kind == "w" && op.addr <= addr && int(addr) < int(op.addr)+op.n {
			count++
		}
	}
	return count
}

// fifoWrites counts the FIFO write bursts.
func (b *testBus) fifoWrites() int {
	count := 0
	for _, op := range b.ops {
		if op.kind == "wf" {
			count++
		}
	}
	return count
}

// testPin records the levels driven onto an output line, true for high.
type testPin struct {
	levels []bool
}

func (p *testPin) SetHigh() error {
	p.levels = append(p.levels, true)
	return nil
}

func (p *testPin) SetLow() error {
	p.levels = append(p.levels, false)
	return nil
}

var errIrqBudget = errors.New("interrupt wait budget exhausted")

const irqWaitBudget = 32

// testIrq scripts the interrupt line. Each WaitForLow consumes the next
// script entry; with no entry left the wait succeeds immediately, up to a
// budget that turns a runaway wait loop into a test failure instead of a
// hang.
type testIrq struct {
	lowScripts []func(ctx context.Context) error
	lows       int
}

func (p *testIrq) WaitForHigh(ctx context.Context) error { return ctx.Err() }

func (p *testIrq) WaitForLow(ctx context.Context) error {
	p.lows++
	if len(p.lowScripts) > 0 {
		f := p.lowScripts[0]
		p.lowScripts = p.lowScripts[1:]
		return f(ctx)
	}
	if p.lows > irqWaitBudget {
		return errIrqBudget
	}
	return ctx.Err()
}

// irqTimedOut simulates an interrupt wait that ran into its deadline.
func irqTimedOut(context.Context) error { return context.DeadlineExceeded }

// testDelay records requested delays without sleeping.
type testDelay struct {
	slept []time.Duration
}

func (d *testDelay) Delay(t time.Duration) { d.slept = append(d.slept, t) }

func newTestRadio() (*Radio, *testBus, *testPin, *testIrq) {
	bus := newTestBus()
	sdn := &testPin{}
	irq := &testIrq{}
	return New(bus, sdn, irq, Gpio0, &testDelay{}), bus, sdn, irq
}

// readyTestRadio hands out a radio brought to Ready with the default
// config. The recorded bus traffic starts fresh.
func readyTestRadio(t *testing.T) (*Radio, *testBus, *testIrq) {
	t.Helper()
	r, bus, _, irq := newTestRadio()
	if err := r.Init(context.Background(), DefaultRadioConfig()); err != nil {
		t.Fatalf("init failed: %s", err)
	}
	bus.ops = nil
	return r, bus, irq
}

// formattedTestRadio additionally configures a packet format.
func formattedTestRadio(t *testing.T, f PacketFormat) (*Radio, *testBus, *testIrq) {
	t.Helper()
	r, bus, irq := readyTestRadio(t)
	if err := r.SetFormat(f); err != nil {
		t.Fatalf("set format failed: %s", err)
	}
	bus.ops = nil
	return r, bus, irq
}

// testBasicFormat mirrors a typical point to point setup without the
// address byte.
func testBasicFormat() Basic {
	return Basic{
		PreambleLength:       128,
		SyncLength:           32,
		SyncPattern:          0x12345678,
		PacketLengthEncoding: LengthWidth1Byte,
		CrcMode:              CrcPoly0x1021,
		PacketFilter:         DefaultPacketFilter(),
	}
}
