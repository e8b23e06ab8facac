package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Loop controls the cooperative loop pacing and lifetime.
	Loop LoopConfig `json:"loop"`

	// Tasks are the periodic jobs polled by the loop, in declaration
	// order.
	Tasks []TaskConfig `json:"tasks"`

	Journal  *JournalConfig `json:"journal,omitempty"`
	Debug    DebugConfig    `json:"debug,omitempty"`
	Watchdog WatchdogConfig `json:"watchdog,omitempty"`
}

// LoopConfig controls the cooperative loop.
//
// All durations are Go duration strings (e.g. "25ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - resolution: "25ms"
//   - warn_overrun: 2x resolution
//   - status_every: "1m" ("0s" disables the status line)
//   - max_uptime: "0s" (run until signalled)
type LoopConfig struct {
	// Resolution is the poll cadence. Gates cannot fire more often than
	// the loop polls them, so this bounds scheduling granularity.
	Resolution string `json:"resolution,omitempty"`

	// WarnOverrun logs a warning when one full pass (all due tasks, run
	// inline) takes longer than this.
	WarnOverrun string `json:"warn_overrun,omitempty"`

	StatusEvery string `json:"status_every,omitempty"`
	MaxUptime   string `json:"max_uptime,omitempty"`
}

// TaskConfig declares one periodic task on the loop.
//
// Every accepts a Go duration ("30s", "1h30m", optionally prefixed with
// "every:" or "interval:"), an HH:MM span ("01:30" means every 90
// minutes) or a cron "@every" form ("@every 45s"). Calendar cron
// expressions are rejected: the loop schedules on monotonic spans only.
type TaskConfig struct {
	Name  string `json:"name"`
	Every string `json:"every"`

	// Kind selects the action: "log" or "command".
	Kind string `json:"kind"`

	// Enabled is a pointer so an omitted field means true.
	Enabled *bool `json:"enabled,omitempty"`

	// Timeout bounds one run (Go duration string). "0s" disables.
	Timeout string `json:"timeout,omitempty"`

	// Message is what kind "log" tasks write.
	Message string `json:"message,omitempty"`

	// Command is the argv kind "command" tasks execute.
	Command []string `json:"command,omitempty"`
}

// On reports whether the task is enabled (omitted means yes).
func (t TaskConfig) On() bool { return t.Enabled == nil || *t.Enabled }

// JournalConfig controls the optional task-run journal.
//
// Example:
//
//	"journal": { "driver": "file", "path": "./loopd_journal" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// RetainDays prunes journal rows older than this many days (sqlite
	// driver only). 0 keeps everything.
	RetainDays int `json:"retain_days,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (pprof + healthz).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MemProfileRate       int `json:"mem_profile_rate,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WatchdogConfig controls systemd watchdog keepalives. Petting only
// happens when systemd supplies WATCHDOG_USEC; outside systemd the
// keeper stays inert regardless of this block.
type WatchdogConfig struct {
	// Enabled is a pointer so an omitted field means true.
	Enabled *bool `json:"enabled,omitempty"`

	// PetEvery overrides the pet interval (Go duration string).
	// Default: half the interval systemd advertises.
	PetEvery string `json:"pet_every,omitempty"`
}

// On reports whether watchdog petting is enabled (omitted means yes).
func (w WatchdogConfig) On() bool { return w.Enabled == nil || *w.Enabled }
