package journal

import (
	"context"
	"errors"
	logx "loopkit/pkg/logx"
	"strings"
)

// Store is the minimal persistence API used by the run loop's observers.
type Store interface {
	AppendRun(ctx context.Context, e Entry) error
	Close() error
}

// Open initializes the configured store.
// A missing or "none" driver returns ErrDisabled; callers treat that
// as "run without a journal", not as a failure.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown journal driver: " + driver)
	}
}
