package rpi

import (
	"context"
	"fmt"
	"sync"

	"github.com/mazen160/go-random"
	"github.com/warthog618/gpiod"
)

// OutputLine drives a single GPIO output line.
type OutputLine struct {
	line *gpiod.Line
}

func newOutputLine(chip *gpiod.Chip, pin int, initial int) (*OutputLine, error) {
	line, err := chip.RequestLine(pin, gpiod.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("failed to request output line %d: %w", pin, err)
	}
	return &OutputLine{line: line}, nil
}

func (o *OutputLine) SetHigh() error { return o.set(1) }

func (o *OutputLine) SetLow() error { return o.set(0) }

func (o *OutputLine) set(v int) error {
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("failed to set line value: %w", err)
	}
	return nil
}

func (o *OutputLine) close() error {
	return o.line.Close()
}

// IrqLine watches the radio interrupt line. Waiters park in a map keyed by
// a random id and the edge handler releases everyone waiting for that edge.
type IrqLine struct {
	line *gpiod.Line

	mu          sync.Mutex
	highWaiters map[string]chan struct{}
	lowWaiters  map[string]chan struct{}
}

func newIrqLine(chip *gpiod.Chip, pin int) (*IrqLine, error) {
	l := &IrqLine{
		highWaiters: make(map[string]chan struct{}),
		lowWaiters:  make(map[string]chan struct{}),
	}
	line, err := chip.RequestLine(pin,
		gpiod.WithEventHandler(l.onEdgeEvent),
		gpiod.WithBothEdges,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to request interrupt line %d: %w", pin, err)
	}
	l.line = line
	return l, nil
}

func (l *IrqLine) onEdgeEvent(evt gpiod.LineEvent) {
	if evt.Type == gpiod.LineEventRisingEdge {
		l.notify(l.highWaiters)
	} else {
		l.notify(l.lowWaiters)
	}
}

func (l *IrqLine) notify(waiters map[string]chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range waiters {
		close(ch)
		delete(waiters, id)
	}
}

// WaitForHigh blocks until the line reads high or ctx ends.
func (l *IrqLine) WaitForHigh(ctx context.Context) error {
	return l.waitForLevel(ctx, 1, l.highWaiters)
}

// WaitForLow blocks until the line reads low or ctx ends.
func (l *IrqLine) WaitForLow(ctx context.Context) error {
	return l.waitForLevel(ctx, 0, l.lowWaiters)
}

func (l *IrqLine) waitForLevel(ctx context.Context, level int, waiters map[string]chan struct{}) error {
	id, err := random.String(16)
	if err != nil {
		return fmt.Errorf("failed to generate waiter id: %w", err)
	}
	ch := make(chan struct{})
	l.mu.Lock()
	waiters[id] = ch
	l.mu.Unlock()

	// Sample the level only after the waiter is parked, an edge firing in
	// between would otherwise be lost.
	val, err := l.line.Value()
	if err != nil {
		l.drop(waiters, id)
		return fmt.Errorf("failed to read interrupt line: %w", err)
	}
	if val == level {
		l.drop(waiters, id)
		return nil
	}

	select {
	case <-ctx.Done():
		l.drop(waiters, id)
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (l *IrqLine) drop(waiters map[string]chan struct{}, id string) {
	l.mu.Lock()
	delete(waiters, id)
	l.mu.Unlock()
}

func (l *IrqLine) close() error {
	return l.line.Close()
}
