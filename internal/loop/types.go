package loop

import (
	"context"
	"errors"
	"time"
)

// StopReason is used for structured shutdown tracing. The loop itself
// only ever stops for a signal or max uptime; the app layer adds the
// fatal-error case.
type StopReason string

const (
	StopUnknown   StopReason = "unknown"
	StopSignal    StopReason = "signal"
	StopMaxUptime StopReason = "max_uptime"
	StopFatal     StopReason = "fatal_error"
)

// ErrMaxUptime is returned by Run when the configured max uptime elapses.
// The app layer treats it as a request for a clean process exit.
var ErrMaxUptime = errors.New("max uptime reached")

// Config controls the run loop.
//
// The app layer maps config.loop into this struct.
type Config struct {
	// Resolution is the polling interval. 0 means 25ms.
	Resolution time.Duration

	// WarnOverrun flags a pass that took longer than this.
	// 0 derives twice the resolution.
	WarnOverrun time.Duration

	// StatusEvery emits a one-line uptime/status log on this cadence.
	// 0 means 1m; negative disables.
	StatusEvery time.Duration

	// MaxUptime stops the loop after this much runtime. 0 disables.
	MaxUptime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Resolution <= 0 {
		c.Resolution = 25 * time.Millisecond
	}
	if c.WarnOverrun <= 0 {
		c.WarnOverrun = 2 * c.Resolution
	}
	if c.StatusEvery == 0 {
		c.StatusEvery = time.Minute
	}
	if c.MaxUptime < 0 {
		c.MaxUptime = 0
	}
	return c
}

// TaskDef declares one periodic task.
//
// Run executes inline on the loop goroutine; a slow action stalls every
// other task. Keep it short or give it a Timeout.
type TaskDef struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error

	// Timeout bounds one run. 0 means unbounded.
	Timeout time.Duration
}

// TaskStatus is a lightweight per-task view for diagnostics.
type TaskStatus struct {
	Name      string        `json:"name"`
	Every     time.Duration `json:"every"`
	Runs      uint64        `json:"runs"`
	Failures  uint64        `json:"failures"`
	LastRun   time.Time     `json:"last_run"`
	LastErr   string        `json:"last_err,omitempty"`
	LastTook  time.Duration `json:"last_took"`
	TotalTook time.Duration `json:"total_took"`
}

// Snapshot is a point-in-time view of the loop for diagnostics.
type Snapshot struct {
	Running    bool          `json:"running"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	Uptime     string        `json:"uptime,omitempty"`
	Passes     uint64        `json:"passes"`
	Overruns   uint64        `json:"overruns"`
	Resolution time.Duration `json:"resolution"`
	Tasks      []TaskStatus  `json:"tasks"`
}
