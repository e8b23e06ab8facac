// Package expiry provides a pull-based timeout for cooperative control
// loops. Nothing fires on its own: the owner polls Expired once per
// pass and acts on the answer.
package expiry

import (
	"time"

	"loopkit/pkg/tick"
)

// Mode selects what an expiry does to the timer.
type Mode uint8

const (
	// OneShot disarms the timer on expiry; Expired reports true exactly
	// once per Start.
	OneShot Mode = iota
	// Cyclic rebases the timer on expiry so it keeps firing every
	// timeout. The rebase uses the poll sample, not started+timeout, so
	// late polls shift the next window instead of bunching up.
	Cyclic
)

func (m Mode) String() string {
	switch m {
	case OneShot:
		return "one-shot"
	case Cyclic:
		return "cyclic"
	default:
		return "unknown"
	}
}

// Option adjusts timer construction.
type Option func(*Timer)

// WithClock replaces the default process-uptime clock.
func WithClock(c tick.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// Timer is a poll-driven timeout. It constructs idle: arm it with Start,
// then ask Expired once per loop pass. A zero timeout disables expiry
// entirely while leaving the timer armed.
//
// A Timer is not safe for concurrent use; it belongs to the goroutine
// that polls it.
type Timer struct {
	clock   tick.Clock
	mode    Mode
	running bool
	timeout tick.Millis
	started tick.Millis
}

// New returns an idle timer with the given timeout and mode.
func New(timeout time.Duration, mode Mode, opts ...Option) *Timer {
	t := &Timer{clock: tick.Now, mode: mode, timeout: tick.Span(timeout)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start arms the timer from the current clock sample. Starting a
// running timer restarts the interval.
func (t *Timer) Start() {
	t.started = t.clock()
	t.running = true
}

// StartFor sets the timeout and arms the timer in one call.
func (t *Timer) StartFor(d time.Duration) {
	t.timeout = tick.Span(d)
	t.Start()
}

// Stop disarms the timer. Timeout and mode survive, so a later Start
// reuses them. Stopping an idle timer is a no-op.
func (t *Timer) Stop() { t.running = false }

// Running reports whether the timer is armed. It never mutates state.
func (t *Timer) Running() bool { return t.running }

// Expired reports whether the armed interval has elapsed, strictly.
// Idle and zero-timeout timers report false. On expiry a one-shot timer
// disarms and a cyclic timer rebases onto the sample that observed the
// expiry.
func (t *Timer) Expired() bool {
	if !t.running || t.timeout == 0 {
		return false
	}
	now := t.clock()
	if tick.Since(now, t.started) <= t.timeout {
		return false
	}
	if t.mode == OneShot {
		t.running = false
	} else {
		t.started = now
	}
	return true
}

// SetTimeout changes the timeout. An armed interval is re-measured
// against the new value on the next poll, so shrinking it below the
// time already elapsed expires immediately.
func (t *Timer) SetTimeout(d time.Duration) { t.timeout = tick.Span(d) }

// Timeout returns the configured timeout.
func (t *Timer) Timeout() time.Duration { return t.timeout.Duration() }

// SetTimeoutMillis sets the timeout in clock units.
func (t *Timer) SetTimeoutMillis(ms tick.Millis) { t.timeout = ms }

// TimeoutMillis returns the timeout in clock units.
func (t *Timer) TimeoutMillis() tick.Millis { return t.timeout }

// SetMode changes the expiry mode; the next expiry applies it.
func (t *Timer) SetMode(m Mode) { t.mode = m }

// Mode returns the expiry mode.
func (t *Timer) Mode() Mode { return t.mode }

// Elapsed returns how long the armed interval has been running, zero
// when idle. It never mutates state.
func (t *Timer) Elapsed() time.Duration {
	if !t.running {
		return 0
	}
	return tick.Since(t.clock(), t.started).Duration()
}

// Remaining returns the time left until expiry. It reports zero when
// idle, when the timeout is disabled, and once past due. It never
// mutates state.
func (t *Timer) Remaining() time.Duration {
	if !t.running || t.timeout == 0 {
		return 0
	}
	elapsed := tick.Since(t.clock(), t.started)
	if elapsed >= t.timeout {
		return 0
	}
	return (t.timeout - elapsed).Duration()
}
