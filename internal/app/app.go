package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"loopkit/internal/debugsrv"
	"loopkit/internal/eventbus"
	"loopkit/internal/journal"
	"loopkit/internal/loop"
	"loopkit/internal/watchdog"
	logx "loopkit/pkg/logx"
	"loopkit/pkg/tick"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store  journal.Store
	writer *journal.Writer

	loop  *loop.Service
	wd    *watchdog.Keeper
	debug *debugsrv.Service

	reason atomic.Value // StopReason
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Journal (optional)
	var store journal.Store
	var writer *journal.Writer
	jc, err := mapJournalConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	st, err := journal.Open(jc, log.With(logx.String("comp", "journal")))
	switch {
	case errors.Is(err, journal.ErrDisabled):
		// off; nothing to wire
	case err != nil:
		logSvc.Close()
		return nil, err
	default:
		store = st
		writer = journal.NewWriter(store, bus, log.With(logx.String("comp", "journal")))
		log.Info("journal enabled", logx.String("driver", jc.Driver))
	}

	wc, err := mapWatchdogConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	wd := watchdog.New(wc, log.With(logx.String("comp", "watchdog")))

	lc, err := mapLoopConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	defs, err := buildTaskDefs(cfg, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	// Side pollers ride the loop's cadence. The watchdog pet doubles as
	// a liveness probe: a wedged pass stops the petting.
	var opts []loop.Option
	if wd.Enabled() {
		opts = append(opts, loop.WithPoller(tick.NewRunner(wd.PetPeriod(), wd)))
	}
	// Drops are survivable; a once-a-minute summary beats a warning per
	// dropped event. lastDropped is loop-goroutine-only state.
	var lastDropped uint64
	opts = append(opts, loop.WithPoller(tick.Every(time.Minute, func() {
		if d := bus.Dropped(); d != lastDropped {
			log.Warn("event bus dropped events",
				logx.Uint64("new", d-lastDropped), logx.Uint64("total", d))
			lastDropped = d
		}
	})))

	loopSvc := loop.New(lc, defs, log.With(logx.String("comp", "loop")), bus, opts...)

	dc, err := mapDebugConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	debugSvc := debugsrv.New(dc, log.With(logx.String("comp", "debug")), func() any {
		return map[string]any{
			"status":        "ok",
			"loop":          loopSvc.Snapshot(),
			"bus_dropped":   bus.Dropped(),
			"watchdog_pets": wd.Pets(),
		}
	})

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		writer:  writer,
		loop:    loopSvc,
		wd:      wd,
		debug:   debugSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error,
// max uptime or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Reason reports why the app shut itself down; StopUnknown when it was
// stopped from outside (signal) or is still running.
func (a *App) Reason() StopReason {
	if r, ok := a.reason.Load().(StopReason); ok {
		return r
	}
	return StopUnknown
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg == nil {
			return fmt.Errorf("config is empty")
		}
		if !logx.KnownLevel(cfg.Logging.Level) {
			return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
		}
		if _, err := mapLoopConfig(cfg); err != nil {
			return err
		}
		if err := validateTasks(cfg); err != nil {
			return err
		}
		if _, err := mapJournalConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDebugConfig(cfg); err != nil {
			return err
		}
		if _, err := mapWatchdogConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if a.debug.Enabled() {
		a.debug.Start(a.sup.Context())
	}

	a.sup.Go("loop.run", func(c context.Context) error {
		err := a.loop.Run(c)
		if errors.Is(err, loop.ErrMaxUptime) {
			// Planned exit, not a fault: record the reason, unwind the
			// rest of the app, report success to the supervisor.
			a.reason.Store(StopMaxUptime)
			a.log.Info("max uptime reached; shutting down")
			a.sup.Cancel()
			return nil
		}
		return err
	})

	if a.writer != nil {
		a.sup.Go("journal.writer", a.writer.Run)
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.wd.Ready()
	a.log.Info("app started")
	return nil
}

// applyConfig pushes one validated config into the running components.
// It runs on the reload goroutine only.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *Config) {
	sections, attrs, taskNames := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	// Logging first so everything after obeys the new level.
	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	// Loop pacing and the task set reconcile between passes.
	if lc, err := mapLoopConfig(newCfg); err != nil {
		a.log.Warn("invalid loop config; keeping previous", logx.Any("err", err))
	} else if defs, err := buildTaskDefs(newCfg, a.log); err != nil {
		a.log.Warn("invalid tasks; keeping previous", logx.Any("err", err))
	} else {
		a.loop.Apply(lc, defs)
		if len(taskNames) > 0 {
			a.log.Debug("task changes staged", logx.Strings("tasks", taskNames))
		}
	}

	// Debug server restarts itself when bind/auth knobs changed.
	if dc, err := mapDebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Any("err", err))
	} else {
		a.debug.Reconfigure(ctx, dc)
	}

	// Journal and watchdog wire up at startup; flag, don't re-wire.
	for _, s := range sections {
		switch s {
		case "journal":
			a.log.Warn("journal config changed; restart required for changes to take effect")
		case "watchdog":
			a.log.Warn("watchdog config changed; restart required for changes to take effect")
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Data: sections})
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.wd.Stopping()
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so the loop and background goroutines
	// start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "debug", 2*time.Second, func(c context.Context) error {
		a.debug.Stop(c)
		return nil
	})
	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})
	// Close the store after the writer goroutine is down.
	a.step(ctx, "journal", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// mapLoopConfig validates and converts the JSON config into the loop
// config. Empty fields stay zero so the loop's own defaults kick in.
func mapLoopConfig(cfg *Config) (loop.Config, error) {
	var out loop.Config
	if cfg == nil {
		return out, nil
	}
	lc := cfg.Loop

	res, err := parseDurationField("loop.resolution", lc.Resolution)
	if err != nil {
		return out, err
	}
	warn, err := parseDurationField("loop.warn_overrun", lc.WarnOverrun)
	if err != nil {
		return out, err
	}
	status, err := parseDurationField("loop.status_every", lc.StatusEvery)
	if err != nil {
		return out, err
	}
	// An explicit "0s" means "no status line"; an omitted field means
	// "use the default". The loop encodes the former as negative.
	if status == 0 && strings.TrimSpace(lc.StatusEvery) != "" {
		status = -1
	}
	maxUp, err := parseDurationField("loop.max_uptime", lc.MaxUptime)
	if err != nil {
		return out, err
	}

	out.Resolution = res
	out.WarnOverrun = warn
	out.StatusEvery = status
	out.MaxUptime = maxUp
	return out, nil
}

// step runs one shutdown stage with an upper bound so a stuck component
// cannot stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()

	stepCtx := ctx
	var cancel context.CancelFunc
	if max > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		// Contract: fn MUST honor stepCtx and return promptly. If it
		// doesn't, this is the leak signal.
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.String("err", stepCtx.Err().Error()),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
