package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"loopkit/internal/eventbus"
	logx "loopkit/pkg/logx"
	"loopkit/pkg/tick"
)

// drive steps the simulated clock in `step` increments up to and
// including `until`, running one pass per step.
func drive(t *testing.T, s *Service, sim *tick.SimClock, step, until tick.Millis) {
	t.Helper()
	for now := sim.Now(); now <= until; now += step {
		sim.Set(now)
		if stop := s.pass(context.Background()); stop {
			t.Fatalf("loop requested stop at t=%d", now)
		}
	}
}

func TestPassRunsTasksOnCadence(t *testing.T) {
	sim := tick.NewSimClock(0)
	var runs atomic.Uint64
	defs := []TaskDef{{
		Name:  "count",
		Every: 100 * time.Millisecond,
		Run:   func(context.Context) error { runs.Add(1); return nil },
	}}
	s := New(Config{Resolution: 25 * time.Millisecond}, defs, logx.Nop(), nil, WithTickClock(sim.Now))

	drive(t, s, sim, 25, 1000)

	// Polled at 25ms with a 100ms period and a strict-greater gate, the
	// effective cadence is 125ms: fires at 125, 250, ..., 1000.
	if got := runs.Load(); got != 8 {
		t.Fatalf("expected 8 runs over 1s, got %d", got)
	}
}

func TestApplyKeepsGateCreditOnPeriodChange(t *testing.T) {
	sim := tick.NewSimClock(0)
	var runs atomic.Uint64
	def := TaskDef{
		Name:  "count",
		Every: 100 * time.Millisecond,
		Run:   func(context.Context) error { runs.Add(1); return nil },
	}
	cfg := Config{Resolution: 25 * time.Millisecond}
	s := New(cfg, []TaskDef{def}, logx.Nop(), nil, WithTickClock(sim.Now))

	drive(t, s, sim, 25, 150) // fires once, at t=125
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected 1 run before apply, got %d", got)
	}

	def.Every = 300 * time.Millisecond
	s.Apply(cfg, []TaskDef{def})

	// Credit from the last fire (t=125) carries over: next fire needs
	// elapsed > 300ms, so t=450 is the first qualifying poll.
	drive(t, s, sim, 25, 425)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected no second run by t=425, got %d", got)
	}
	sim.Set(450)
	s.pass(context.Background())
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected second run at t=450, got %d", got)
	}
}

func TestApplyAddsAndRemovesTasks(t *testing.T) {
	sim := tick.NewSimClock(0)
	var aRuns, bRuns atomic.Uint64
	cfg := Config{Resolution: 25 * time.Millisecond}
	s := New(cfg, []TaskDef{{
		Name:  "a",
		Every: 100 * time.Millisecond,
		Run:   func(context.Context) error { aRuns.Add(1); return nil },
	}}, logx.Nop(), nil, WithTickClock(sim.Now))

	drive(t, s, sim, 25, 200)
	if aRuns.Load() == 0 {
		t.Fatal("task a never ran")
	}

	s.Apply(cfg, []TaskDef{{
		Name:  "b",
		Every: 100 * time.Millisecond,
		Run:   func(context.Context) error { bRuns.Add(1); return nil },
	}})

	// A fresh gate carries no last-fired mark, so with 200ms already on
	// the clock task b is due on its very first poll.
	before := aRuns.Load()
	sim.Set(225)
	s.pass(context.Background())
	if bRuns.Load() != 1 {
		t.Fatalf("expected b to run on first pass after apply, got %d", bRuns.Load())
	}
	drive(t, s, sim, 25, 500)
	if aRuns.Load() != before {
		t.Fatal("task a kept running after removal")
	}

	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Name != "b" {
		t.Fatalf("expected snapshot to list only b, got %+v", snap.Tasks)
	}
}

func TestMaxUptimeStopsTheLoop(t *testing.T) {
	sim := tick.NewSimClock(0)
	s := New(Config{Resolution: 25 * time.Millisecond, MaxUptime: 500 * time.Millisecond, StatusEvery: -1}, nil, logx.Nop(), nil, WithTickClock(sim.Now))
	s.maxUp.Start()

	for now := tick.Millis(0); now <= 500; now += 25 {
		sim.Set(now)
		if s.pass(context.Background()) {
			t.Fatalf("loop stopped early at t=%d", now)
		}
	}
	sim.Set(525)
	if !s.pass(context.Background()) {
		t.Fatal("expected stop once max uptime elapsed")
	}
}

func TestTaskPanicIsContained(t *testing.T) {
	sim := tick.NewSimClock(0)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{Resolution: 25 * time.Millisecond}, []TaskDef{{
		Name:  "boom",
		Every: 50 * time.Millisecond,
		Run:   func(context.Context) error { panic("kaput") },
	}}, logx.Nop(), bus, WithTickClock(sim.Now))

	sim.Set(100)
	s.pass(context.Background())

	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Failures != 1 {
		t.Fatalf("expected one recorded failure, got %+v", snap.Tasks)
	}
	select {
	case e := <-events:
		if e.Type != eventbus.TypeTaskFailed {
			t.Fatalf("expected task.failed event, got %s", e.Type)
		}
		run, ok := e.Data.(RunEvent)
		if !ok {
			t.Fatalf("unexpected payload %T", e.Data)
		}
		if run.Task != "boom" || run.Error == "" {
			t.Fatalf("unexpected run event: %+v", run)
		}
	default:
		t.Fatal("no event published for panicking task")
	}
}

func TestTaskTimeoutBoundsRun(t *testing.T) {
	sim := tick.NewSimClock(0)
	s := New(Config{}, []TaskDef{{
		Name:    "slow",
		Every:   50 * time.Millisecond,
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}, logx.Nop(), nil, WithTickClock(sim.Now))

	sim.Set(100)
	s.pass(context.Background())

	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Failures != 1 {
		t.Fatalf("expected the run to fail on deadline, got %+v", snap.Tasks)
	}
	if snap.Tasks[0].LastErr != context.DeadlineExceeded.Error() {
		t.Fatalf("unexpected error: %q", snap.Tasks[0].LastErr)
	}
}

func TestPassPublishesOverruns(t *testing.T) {
	sim := tick.NewSimClock(0)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{Resolution: 25 * time.Millisecond, WarnOverrun: time.Nanosecond}, []TaskDef{{
		Name:  "slow",
		Every: 50 * time.Millisecond,
		Run: func(context.Context) error {
			time.Sleep(2 * time.Millisecond)
			return nil
		},
	}}, logx.Nop(), bus, WithTickClock(sim.Now))

	sim.Set(100)
	s.pass(context.Background())

	if got := s.Snapshot().Overruns; got != 1 {
		t.Fatalf("expected 1 overrun, got %d", got)
	}
	var sawOverrun bool
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.TypeLoopOverrun {
			sawOverrun = true
		}
	}
	if !sawOverrun {
		t.Fatal("no loop.overrun event published")
	}
}

func TestExtraPollersRunEachPass(t *testing.T) {
	sim := tick.NewSimClock(0)
	var beats atomic.Uint64
	hb := tick.Every(200*time.Millisecond, func() { beats.Add(1) }, tick.WithClock(sim.Now))

	s := New(Config{Resolution: 25 * time.Millisecond}, nil, logx.Nop(), nil,
		WithTickClock(sim.Now), WithPoller(hb))

	drive(t, s, sim, 25, 1000)

	// Strict-greater gating at 25ms polls yields fires at 225, 450, 675, 900.
	if got := beats.Load(); got != 4 {
		t.Fatalf("expected 4 heartbeats, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Resolution: 5 * time.Millisecond}, nil, logx.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if !s.Snapshot().Running {
		t.Fatal("loop not marked running")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if s.Snapshot().Running {
		t.Fatal("loop still marked running after stop")
	}
}

func TestRunReturnsErrMaxUptime(t *testing.T) {
	s := New(Config{Resolution: 5 * time.Millisecond, MaxUptime: 50 * time.Millisecond, StatusEvery: -1}, nil, logx.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrMaxUptime) {
			t.Fatalf("expected ErrMaxUptime, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop at max uptime")
	}
}
