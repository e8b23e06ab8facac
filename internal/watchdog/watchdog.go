package watchdog

import (
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "loopkit/pkg/logx"
)

// Keeper pets the systemd watchdog from inside the run loop.
//
// systemd kills the unit when no pet arrives within WatchdogSec, so the
// pet doubles as a liveness probe for the loop itself: a wedged pass
// stops the petting and systemd restarts the daemon.
type Keeper struct {
	log logx.Logger

	enabled  bool
	interval time.Duration
	petEvery time.Duration

	pets atomic.Uint64
}

// Config controls the keeper.
type Config struct {
	// Enabled gates petting even when systemd provides a watchdog.
	Enabled bool

	// PetEvery overrides the pet cadence. 0 (or anything at or past the
	// systemd interval) derives half the interval.
	PetEvery time.Duration
}

// New inspects WATCHDOG_USEC / WATCHDOG_PID. The keeper is inert when
// systemd did not arm a watchdog for this process.
func New(cfg Config, log logx.Logger) *Keeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	k := &Keeper{log: log}
	if !cfg.Enabled {
		return k
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("watchdog detection failed", logx.Any("err", err))
		return k
	}
	if interval <= 0 {
		log.Debug("no systemd watchdog armed")
		return k
	}
	k.enabled = true
	k.interval = interval
	k.petEvery = cfg.PetEvery
	if k.petEvery <= 0 || k.petEvery >= interval {
		k.petEvery = interval / 2
	}
	log.Info("systemd watchdog armed", logx.Duration("interval", interval), logx.Duration("pet_every", k.petEvery))
	return k
}

// Enabled reports whether a systemd watchdog is armed and petting is on.
func (k *Keeper) Enabled() bool { return k.enabled }

// PetPeriod returns the cadence the run loop should pet at.
func (k *Keeper) PetPeriod() time.Duration { return k.petEvery }

// Interval returns the systemd WatchdogSec value, 0 when not armed.
func (k *Keeper) Interval() time.Duration { return k.interval }

// Pets returns the number of acknowledged pets, for diagnostics.
func (k *Keeper) Pets() uint64 { return k.pets.Load() }

// Task sends one watchdog pet. It satisfies tick.Task so the run loop
// can drive the keeper through a gated runner.
func (k *Keeper) Task() {
	if !k.enabled {
		return
	}
	ack, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	if err != nil {
		k.log.Warn("watchdog pet failed", logx.Any("err", err))
		return
	}
	if ack {
		k.pets.Add(1)
	}
}

// Ready tells systemd that startup finished.
func (k *Keeper) Ready() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func (k *Keeper) Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
