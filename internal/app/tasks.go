package app

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"loopkit/internal/loop"
	"loopkit/internal/schedule"
	logx "loopkit/pkg/logx"
)

// Task kinds the loop knows how to run.
const (
	KindLog     = "log"
	KindCommand = "command"
)

// buildTaskDefs maps config tasks onto loop entries, in declaration
// order. Disabled tasks are skipped silently; anything else that fails
// to build is an error so a bad config never half-applies.
func buildTaskDefs(cfg *Config, log logx.Logger) ([]loop.TaskDef, error) {
	if cfg == nil {
		return nil, nil
	}
	// The loop reconciles entries by name; a collision would silently
	// merge two tasks' stats.
	seen := make(map[string]bool, len(cfg.Tasks))
	defs := make([]loop.TaskDef, 0, len(cfg.Tasks))
	for i := range cfg.Tasks {
		tc := cfg.Tasks[i]
		name := strings.TrimSpace(tc.Name)
		if seen[name] && name != "" {
			return nil, fmt.Errorf("tasks[%s]: duplicate name", name)
		}
		seen[name] = true
		if !tc.On() {
			continue
		}
		def, err := buildTaskDef(tc, log)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func buildTaskDef(tc TaskConfig, log logx.Logger) (loop.TaskDef, error) {
	name := strings.TrimSpace(tc.Name)
	if name == "" {
		return loop.TaskDef{}, fmt.Errorf("tasks[]: name is required")
	}

	spec, err := schedule.Parse(tc.Every)
	if err != nil {
		return loop.TaskDef{}, fmt.Errorf("tasks[%s].every: %w", name, err)
	}
	timeout, err := parseDurationField(fmt.Sprintf("tasks[%s].timeout", name), tc.Timeout)
	if err != nil {
		return loop.TaskDef{}, err
	}

	def := loop.TaskDef{Name: name, Every: spec.Every, Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(tc.Kind)) {
	case KindLog:
		msg := strings.TrimSpace(tc.Message)
		if msg == "" {
			msg = "tick"
		}
		tlog := log.With(logx.String("task", name))
		def.Run = func(context.Context) error {
			tlog.Info(msg)
			return nil
		}
	case KindCommand:
		if len(tc.Command) == 0 || strings.TrimSpace(tc.Command[0]) == "" {
			return loop.TaskDef{}, fmt.Errorf("tasks[%s].command: argv is required for kind %q", name, KindCommand)
		}
		// Copy the argv so a hot-reload rebuilding the config slice can't
		// mutate a task that's already installed.
		argv := append([]string(nil), tc.Command...)
		def.Run = func(ctx context.Context) error {
			return runCommand(ctx, argv)
		}
	default:
		return loop.TaskDef{}, fmt.Errorf("tasks[%s].kind: unknown kind %q (use %q or %q)", name, tc.Kind, KindLog, KindCommand)
	}
	return def, nil
}

// runCommand executes argv synchronously on the loop goroutine. The
// timeout (if any) arrives via ctx; on non-zero exit the task error
// carries a trimmed slice of combined output so the journal and logs
// show why the command failed.
func runCommand(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	// Deadline/cancel beats the exit status; "signal: killed" alone is
	// useless in a run record.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if s := truncate(strings.TrimSpace(string(out)), 512); s != "" {
		return fmt.Errorf("%w: %s", err, s)
	}
	return err
}

// validateTasks checks what buildTaskDefs would reject, plus the
// cross-task rules (unique names). Runs inside the reload validator so
// a bad edit never evicts the running task set.
func validateTasks(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Tasks))
	for i := range cfg.Tasks {
		tc := cfg.Tasks[i]
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			return fmt.Errorf("tasks[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("tasks[%s]: duplicate name", name)
		}
		seen[name] = true

		// Disabled tasks still have to validate; otherwise enabling one
		// later surprises the operator with a parse error.
		if _, err := schedule.Parse(tc.Every); err != nil {
			return fmt.Errorf("tasks[%s].every: %w", name, err)
		}
		if _, err := parseDurationField(fmt.Sprintf("tasks[%s].timeout", name), tc.Timeout); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(tc.Kind)) {
		case KindLog:
		case KindCommand:
			if len(tc.Command) == 0 || strings.TrimSpace(tc.Command[0]) == "" {
				return fmt.Errorf("tasks[%s].command: argv is required for kind %q", name, KindCommand)
			}
		default:
			return fmt.Errorf("tasks[%s].kind: unknown kind %q (use %q or %q)", name, tc.Kind, KindLog, KindCommand)
		}
	}
	return nil
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
