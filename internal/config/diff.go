package config

import (
	logx "loopkit/pkg/logx"
	"reflect"
	"sort"
	"strings"
)

// SummarizeChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like the
// debug token), and (3) the names of tasks whose definition changed.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Loop
	if oldCfg.Loop != newCfg.Loop {
		changed = append(changed, "loop")
		attrs = append(attrs,
			logx.String("loop.resolution", strings.TrimSpace(newCfg.Loop.Resolution)),
			logx.String("loop.status_every", strings.TrimSpace(newCfg.Loop.StatusEvery)),
			logx.String("loop.max_uptime", strings.TrimSpace(newCfg.Loop.MaxUptime)),
		)
	}

	// Tasks (diffed by name so reloads only touch what changed)
	taskNames := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(taskNames) > 0 {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.count", len(newCfg.Tasks)),
			logx.Strings("tasks.changed", taskNames),
		)
	}

	// Journal. Nil means disabled.
	if !reflect.DeepEqual(oldCfg.Journal, newCfg.Journal) {
		changed = append(changed, "journal")
		var driver string
		var pathSet bool
		if newCfg.Journal != nil {
			driver = strings.TrimSpace(newCfg.Journal.Driver)
			pathSet = strings.TrimSpace(newCfg.Journal.Path) != ""
		}
		attrs = append(attrs,
			logx.String("journal.driver", driver),
			logx.Bool("journal.path_set", pathSet),
		)
	}

	// Debug (never log the token)
	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.String("debug.prefix", strings.TrimSpace(newCfg.Debug.Prefix)),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
			logx.Bool("debug.allow_insecure", newCfg.Debug.AllowInsecure),
		)
	}

	// Watchdog
	if !reflect.DeepEqual(oldCfg.Watchdog, newCfg.Watchdog) {
		changed = append(changed, "watchdog")
		attrs = append(attrs,
			logx.Bool("watchdog.enabled", newCfg.Watchdog.On()),
			logx.String("watchdog.pet_every", strings.TrimSpace(newCfg.Watchdog.PetEvery)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, taskNames
}

// diffTasks returns the names of tasks that were added, removed or
// redefined, sorted.
func diffTasks(oldTasks, newTasks []TaskConfig) []string {
	oldByName := make(map[string]TaskConfig, len(oldTasks))
	for _, t := range oldTasks {
		oldByName[t.Name] = t
	}
	seen := make(map[string]bool, len(newTasks))
	var names []string
	for _, t := range newTasks {
		seen[t.Name] = true
		old, ok := oldByName[t.Name]
		if !ok || !reflect.DeepEqual(old, t) {
			names = append(names, t.Name)
		}
	}
	for _, t := range oldTasks {
		if !seen[t.Name] {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}
