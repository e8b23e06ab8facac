package app

import (
	"fmt"
	"strings"
	"time"

	"loopkit/internal/journal"
)

// mapJournalConfig validates and converts the JSON config into the
// journal config. It never opens the store, so the reload validator can
// reject a bad edit without touching the filesystem.
func mapJournalConfig(cfg *Config) (journal.Config, error) {
	var out journal.Config
	if cfg == nil || cfg.Journal == nil {
		return out, nil // zero config reads as disabled
	}
	jc := cfg.Journal

	driver := strings.ToLower(strings.TrimSpace(jc.Driver))
	path := strings.TrimSpace(jc.Path)

	if jc.RetainDays < 0 {
		return out, fmt.Errorf("journal.retain_days must be >= 0")
	}

	switch driver {
	case "", "none":
		return journal.Config{}, nil
	case "file":
		if path == "" {
			return out, fmt.Errorf("journal.path is required when journal.driver=file")
		}
		return journal.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return out, fmt.Errorf("journal.path is required when journal.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("journal.busy_timeout", jc.BusyTimeout, time.Second)
		if err != nil {
			return out, err
		}
		return journal.Config{
			Driver:      driver,
			Path:        path,
			BusyTimeout: busy,
			RetainDays:  jc.RetainDays,
		}, nil
	default:
		return out, fmt.Errorf("unknown journal.driver: %s", jc.Driver)
	}
}
