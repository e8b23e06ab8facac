package journal

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("journal disabled")

// Config configures the run journal.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl, rotated by size)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", journaling is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	RetainDays  int           // sqlite only; 0 keeps everything
}

// Entry records one task run.
// Keep it compact and schema-stable.
type Entry struct {
	At     time.Time `json:"at"`
	Task   string    `json:"task"`
	Seq    uint64    `json:"seq"`
	OK     bool      `json:"ok"`
	Error  string    `json:"err,omitempty"`
	TookMS int64     `json:"took_ms"`
}
