package loop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"loopkit/internal/eventbus"
	"loopkit/pkg/durfmt"
	"loopkit/pkg/expiry"
	logx "loopkit/pkg/logx"
	"loopkit/pkg/tick"
)

// Service owns the polling loop.
//
// All gates and timers in here are poll-based state from pkg/tick and
// pkg/expiry, touched only from the Run goroutine. Apply may be called
// from other goroutines; it stages the next generation and the loop
// swaps it in at the top of a pass.
type Service struct {
	log logx.Logger
	bus eventbus.Bus

	clock tick.Clock

	mu      sync.Mutex
	cfg     Config
	pending []TaskDef
	dirty   bool

	// Loop-owned state. Never touched outside the Run goroutine.
	entries []*entry
	extra   []tick.Poller
	maxUp   *expiry.Timer
	status  *expiry.Timer

	seq      atomic.Uint64
	overruns atomic.Uint64

	overrunWarn rate.Sometimes

	smu       sync.Mutex
	running   bool
	startedAt time.Time
	stats     map[string]*TaskStatus
}

// entry binds a task definition to its interval gate.
type entry struct {
	def  TaskDef
	gate *tick.Gate
}

type Option func(*Service)

// WithTickClock substitutes the millisecond clock, for tests.
func WithTickClock(c tick.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPoller registers an extra poller that runs once per pass, after
// the task gates. Used for the watchdog keeper and heartbeat probes.
func WithPoller(p tick.Poller) Option {
	return func(s *Service) {
		if p != nil {
			s.extra = append(s.extra, p)
		}
	}
}

func New(cfg Config, defs []TaskDef, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:         log,
		bus:         bus,
		clock:       tick.Now,
		cfg:         cfg.withDefaults(),
		pending:     defs,
		dirty:       true,
		overrunWarn: rate.Sometimes{First: 3, Interval: time.Minute},
		stats:       map[string]*TaskStatus{},
	}
	for _, o := range opts {
		o(s)
	}
	s.maxUp = expiry.New(s.cfg.MaxUptime, expiry.OneShot, expiry.WithClock(s.clock))
	s.status = expiry.New(statusTimeout(s.cfg.StatusEvery), expiry.Cyclic, expiry.WithClock(s.clock))
	return s
}

// Apply stages a new configuration and task set. The loop picks both up
// at the top of its next pass; gates of tasks that keep their name also
// keep their elapsed credit.
func (s *Service) Apply(cfg Config, defs []TaskDef) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.pending = defs
	s.dirty = true
	s.mu.Unlock()
}

// Run polls until ctx is done or the configured max uptime elapses.
// It returns ErrMaxUptime in the latter case and nil otherwise.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	s.maxUp.Start()
	s.status.Start()

	s.smu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.smu.Unlock()
	defer func() {
		s.smu.Lock()
		s.running = false
		s.smu.Unlock()
	}()

	s.log.Info("loop started",
		logx.Duration("resolution", cfg.Resolution),
		logx.Duration("status_every", cfg.StatusEvery),
		logx.Duration("max_uptime", cfg.MaxUptime),
	)

	res := cfg.Resolution
	ticker := time.NewTicker(res)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("loop stopped", logx.String("reason", string(StopSignal)), logx.Uint64("passes", s.seq.Load()))
			return nil
		case <-ticker.C:
			if stop := s.pass(ctx); stop {
				s.log.Info("loop stopped", logx.String("reason", string(StopMaxUptime)), logx.Uint64("passes", s.seq.Load()))
				return ErrMaxUptime
			}
			s.mu.Lock()
			nr := s.cfg.Resolution
			s.mu.Unlock()
			if nr != res {
				res = nr
				ticker.Reset(res)
			}
		}
	}
}

// pass executes one full poll: swap in staged config, fire due gates,
// drive extra pollers, service the status and max-uptime timers.
func (s *Service) pass(ctx context.Context) (stop bool) {
	started := time.Now()

	s.reconcile()

	for _, e := range s.entries {
		if e.gate.Allow() {
			s.runEntry(ctx, e)
		}
	}
	for _, p := range s.extra {
		p.Run()
	}

	if s.status.Expired() {
		s.logStatus()
	}
	if s.maxUp.Expired() {
		return true
	}

	took := time.Since(started)
	s.mu.Lock()
	budget := s.cfg.WarnOverrun
	s.mu.Unlock()
	if budget > 0 && took > budget {
		s.overruns.Add(1)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeLoopOverrun,
				Time: time.Now(),
				Data: OverrunEvent{Pass: s.seq.Load(), Took: took, Budget: budget},
			})
		}
		s.overrunWarn.Do(func() {
			s.log.Warn("loop pass overran", logx.Uint64("pass", s.seq.Load()), logx.Duration("took", took), logx.Duration("budget", budget))
		})
	}
	s.seq.Add(1)
	return false
}

// reconcile swaps in a staged task generation. Gates of surviving names
// are kept so elapsed credit carries across reloads; new names start
// cold and fire on their next due tick.
func (s *Service) reconcile() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	defs := s.pending
	s.pending = nil
	s.dirty = false
	maxUptime := s.cfg.MaxUptime
	statusEvery := s.cfg.StatusEvery
	s.mu.Unlock()

	old := make(map[string]*entry, len(s.entries))
	for _, e := range s.entries {
		old[e.def.Name] = e
	}

	next := make([]*entry, 0, len(defs))
	for _, def := range defs {
		if def.Run == nil || def.Every <= 0 {
			s.log.Warn("skipping invalid task", logx.String("task", def.Name), logx.Duration("every", def.Every))
			continue
		}
		if prev, ok := old[def.Name]; ok {
			if prev.def.Every != def.Every {
				prev.gate.SetPeriod(def.Every)
			}
			prev.def = def
			next = append(next, prev)
			delete(old, def.Name)
			continue
		}
		next = append(next, &entry{
			def:  def,
			gate: tick.NewGate(def.Every, tick.WithClock(s.clock)),
		})
	}
	for name := range old {
		s.dropStats(name)
		s.log.Debug("task removed", logx.String("task", name))
	}
	s.entries = next

	// Both timers re-measure retroactively, so a shortened max_uptime
	// that has already elapsed fires on this very pass.
	s.maxUp.SetTimeout(maxUptime)
	s.status.SetTimeout(statusTimeout(statusEvery))

	s.log.Debug("task set applied", logx.Int("tasks", len(next)))
}

func (s *Service) runEntry(ctx context.Context, e *entry) {
	started := time.Now()
	err := s.invoke(ctx, e)
	took := time.Since(started)
	pass := s.seq.Load()

	if err != nil {
		s.log.Warn("task.failed", logx.String("task", e.def.Name), logx.Any("err", err), logx.Duration("took", took))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeTaskFailed,
				Time: time.Now(),
				Task: e.def.Name,
				Data: RunEvent{Task: e.def.Name, Seq: pass, Started: started, Duration: took, Error: err.Error()},
			})
		}
	} else {
		if took >= 750*time.Millisecond {
			s.log.Info("task.completed", logx.String("task", e.def.Name), logx.Duration("took", took))
		} else {
			s.log.Debug("task.completed", logx.String("task", e.def.Name), logx.Duration("took", took))
		}
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeTaskCompleted,
				Time: time.Now(),
				Task: e.def.Name,
				Data: RunEvent{Task: e.def.Name, Seq: pass, Started: started, Duration: took},
			})
		}
	}

	s.noteRun(e.def.Name, e.def.Every, started, took, err)
}

// invoke runs the action with panic capture. One bad task must not take
// the loop down with it.
func (s *Service) invoke(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("task panicked", logx.String("task", e.def.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if e.def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.def.Timeout)
		defer cancel()
	}
	return e.def.Run(ctx)
}

func (s *Service) noteRun(name string, every time.Duration, started time.Time, took time.Duration, err error) {
	s.smu.Lock()
	st := s.stats[name]
	if st == nil {
		st = &TaskStatus{Name: name}
		s.stats[name] = st
	}
	st.Every = every
	st.Runs++
	st.LastRun = started
	st.LastTook = took
	st.TotalTook += took
	if err != nil {
		st.Failures++
		st.LastErr = err.Error()
	} else {
		st.LastErr = ""
	}
	s.smu.Unlock()
}

func (s *Service) dropStats(name string) {
	s.smu.Lock()
	delete(s.stats, name)
	s.smu.Unlock()
}

// logStatus emits the periodic one-line status. Uptime renders in the
// coarsest unit that fits; per-task counters follow at debug.
func (s *Service) logStatus() {
	var runs, failures uint64
	s.smu.Lock()
	up := time.Since(s.startedAt)
	tasks := make([]TaskStatus, 0, len(s.stats))
	for _, st := range s.stats {
		runs += st.Runs
		failures += st.Failures
		tasks = append(tasks, *st)
	}
	s.smu.Unlock()

	s.log.Info("status",
		logx.String("uptime", durfmt.FormatDuration(up, false)),
		logx.Int("tasks", len(tasks)),
		logx.Uint64("passes", s.seq.Load()),
		logx.Uint64("runs", runs),
		logx.Uint64("failures", failures),
		logx.Uint64("overruns", s.overruns.Load()),
	)
	if s.log.Enabled(logx.LevelDebug) {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
		for _, st := range tasks {
			s.log.Debug("task status",
				logx.String("task", st.Name),
				logx.Uint64("runs", st.Runs),
				logx.Uint64("failures", st.Failures),
				logx.Duration("last_took", st.LastTook),
			)
		}
	}
}

// Snapshot returns a point-in-time view for diagnostics.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	res := s.cfg.Resolution
	s.mu.Unlock()

	s.smu.Lock()
	defer s.smu.Unlock()

	snap := Snapshot{
		Running:    s.running,
		Passes:     s.seq.Load(),
		Overruns:   s.overruns.Load(),
		Resolution: res,
	}
	if s.running {
		snap.StartedAt = s.startedAt
		snap.Uptime = durfmt.FormatDuration(time.Since(s.startedAt), false)
	}
	tasks := make([]TaskStatus, 0, len(s.stats))
	for _, st := range s.stats {
		tasks = append(tasks, *st)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	snap.Tasks = tasks
	return snap
}

// statusTimeout maps config onto timer semantics: a zero timeout never
// fires, which is exactly what a negative (disabled) StatusEvery means.
func statusTimeout(v time.Duration) time.Duration {
	if v < 0 {
		return 0
	}
	return v
}
