package session

import "sync/atomic"

// ShutdownFlag is the process-wide flag an operator's first Ctrl+C sets.
// The root Session Driver observes it only between turns, never mid-stream.
type ShutdownFlag struct {
	v int32
}

// NewShutdownFlag returns a cleared flag.
func NewShutdownFlag() *ShutdownFlag { return &ShutdownFlag{} }

// Set raises the flag.
func (f *ShutdownFlag) Set() { atomic.StoreInt32(&f.v, 1) }

// IsSet reports whether the flag has been raised.
func (f *ShutdownFlag) IsSet() bool { return atomic.LoadInt32(&f.v) == 1 }

// PauseSignal lets the UI suspend a Session Driver between turns without
// consuming a turn or losing state.
type PauseSignal struct {
	v int32
}

// NewPauseSignal returns a cleared signal.
func NewPauseSignal() *PauseSignal { return &PauseSignal{} }

// Pause raises the signal.
func (p *PauseSignal) Pause() { atomic.StoreInt32(&p.v, 1) }

// Resume clears the signal.
func (p *PauseSignal) Resume() { atomic.StoreInt32(&p.v, 0) }

// IsPaused reports whether the signal is currently raised.
func (p *PauseSignal) IsPaused() bool { return atomic.LoadInt32(&p.v) == 1 }
