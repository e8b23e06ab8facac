package journal

import (
	"context"
	"encoding/json"
	"errors"
	logx "loopkit/pkg/logx"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fileStore is a dependency-free journal backend.
//
// Files:
//   - <prefix>.runs.jsonl     (append-only JSON Lines)
//   - <prefix>.runs.jsonl.old (previous generation after rotation)
//
// The active file rotates once it grows past rotateBytes; a single old
// generation is kept.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path string
	file *os.File

	written     int64
	rotateBytes int64
}

const defaultRotateBytes = 8 << 20

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("journal.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"
	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &fileStore{
		log:         log,
		path:        runsPath,
		file:        f,
		written:     st.Size(),
		rotateBytes: defaultRotateBytes,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Sync()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, e Entry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("runs file closed")
	}
	n, werr := s.file.Write(b)
	s.written += int64(n)
	if werr != nil {
		return werr
	}
	if s.written >= s.rotateBytes {
		// Best-effort rotate.
		if err := s.rotateLocked(); err != nil {
			s.log.Debug("journal rotate failed", logx.Any("err", err))
		}
	}
	return nil
}

// rotateLocked moves the active file aside and starts a fresh one.
// On rename failure the original file is reopened so appends keep working.
func (s *fileStore) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	s.file = nil
	if err := os.Rename(s.path, s.path+".old"); err != nil {
		f, openErr := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if openErr == nil {
			s.file = f
		}
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.file = f
	s.written = 0
	return nil
}
