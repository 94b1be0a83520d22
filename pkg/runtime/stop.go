// Package runtime executes compiled programs: a program-counter loop over
// the instruction array with a scope stack, a call stack, and an
// error-handler stack, plus cooperative cancellation.
package runtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// StopControl is the shared cancellation flag for one run. Stop may be
// called from any goroutine, any number of times.
type StopControl struct {
	stopped atomic.Bool
	once    sync.Once
	ch      chan struct{}
}

// NewStopControl returns an unset control.
func NewStopControl() *StopControl {
	return &StopControl{ch: make(chan struct{})}
}

// Stop requests cancellation and wakes any in-flight Sleep.
func (s *StopControl) Stop() {
	s.stopped.Store(true)
	s.once.Do(func() { close(s.ch) })
}

// Stopped reports whether cancellation was requested.
func (s *StopControl) Stopped() bool {
	return s.stopped.Load()
}

// Sleep waits for d or until Stop is called, whichever is first. It returns
// false when interrupted.
func (s *StopControl) Sleep(d time.Duration) bool {
	if s.Stopped() {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ch:
		return false
	}
}
