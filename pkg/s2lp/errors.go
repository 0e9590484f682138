package s2lp

import (
	"errors"
	"fmt"
)

var (
	// ErrInit means the identity register did not match the expected chip
	// after the reset pulse. The radio stays in Shutdown.
	ErrInit = errors.New("device version register does not match an S2-LP")
	// ErrRcoLock means the RC oscillator calibration reported a lock error
	// during init.
	ErrRcoLock = errors.New("RC oscillator calibration lock error")
	// ErrBadState means the chip state register reported a state the driver
	// cannot recover from while waiting for a transmission.
	ErrBadState = errors.New("chip is in an unexpected state")
	// ErrBufferTooLarge means the payload cannot be described by the packet
	// length field as currently configured.
	ErrBufferTooLarge = errors.New("payload does not fit the configured packet length field")
	// ErrTransferPending is returned by Finish while the transfer has not
	// reached a terminal result yet. Call Wait again, then Finish.
	ErrTransferPending = errors.New("transfer has not finished yet")
	// ErrTransferDone is returned by transfer methods after Finish or
	// Abort already returned the radio to Ready.
	ErrTransferDone = errors.New("transfer already completed")
	// ErrFormatConfigured means SetFormat was called twice for one init
	// session. The format is fixed until the chip goes through Shutdown.
	ErrFormatConfigured = errors.New("packet format already configured")
	// ErrNoFormat means a packet operation was attempted before SetFormat.
	ErrNoFormat = errors.New("no packet format configured")
)

// ConfigError reports a configuration value that failed validation before
// any bus traffic happened.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad config: %s: %s", e.Field, e.Reason)
}

// StateError reports an operation that is not legal in the radio's current
// state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.State)
}
