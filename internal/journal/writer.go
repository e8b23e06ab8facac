package journal

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"loopkit/internal/eventbus"
	"loopkit/internal/loop"
	logx "loopkit/pkg/logx"
)

// Writer drains task run events from the bus into a Store.
//
// Append failures are logged but never propagated: a dead disk must not
// take the run loop down with it. The failure log itself is throttled.
type Writer struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger

	errLimit *rate.Limiter
}

// NewWriter wires a store to the bus. The store must be non-nil; callers
// skip the writer entirely when journaling is disabled.
func NewWriter(store Store, bus eventbus.Bus, log logx.Logger) *Writer {
	return &Writer{
		store:    store,
		bus:      bus,
		log:      log.With(logx.String("svc", "journal")),
		errLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Run consumes events until ctx is done. It always returns nil; the
// journal has no failure mode worth restarting over.
func (w *Writer) Run(ctx context.Context) error {
	events, unsub := w.bus.Subscribe(128)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			w.consume(e)
		}
	}
}

func (w *Writer) consume(e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeTaskCompleted, eventbus.TypeTaskFailed:
	default:
		return
	}
	run, ok := e.Data.(loop.RunEvent)
	if !ok {
		return
	}

	entry := Entry{
		At:     run.Started,
		Task:   run.Task,
		Seq:    run.Seq,
		OK:     e.Type == eventbus.TypeTaskCompleted,
		Error:  run.Error,
		TookMS: run.Duration.Milliseconds(),
	}

	// Shutdown must not abandon an in-flight append, so the write gets
	// its own deadline instead of the run context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := w.store.AppendRun(ctx, entry)
	cancel()
	if err != nil && w.errLimit.Allow() {
		w.log.Warn("journal append failed", logx.String("task", entry.Task), logx.Any("err", err))
	}
}
