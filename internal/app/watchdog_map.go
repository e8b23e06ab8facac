package app

import (
	"loopkit/internal/watchdog"
)

// mapWatchdogConfig converts the JSON config into the keeper config.
// Whether a watchdog is actually armed is systemd's call, not ours.
func mapWatchdogConfig(cfg *Config) (watchdog.Config, error) {
	var out watchdog.Config
	if cfg == nil {
		return out, nil
	}
	wc := cfg.Watchdog

	out.Enabled = wc.On()
	pet, err := parseDurationField("watchdog.pet_every", wc.PetEvery)
	if err != nil {
		return out, err
	}
	out.PetEvery = pet
	return out, nil
}
