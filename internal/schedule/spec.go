package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a parsed task period. The loop schedules on monotonic spans
// only, so every accepted form reduces to a fixed interval.
//
// Supported forms:
//   - Go duration: "45s", "2h30m" (optional "interval:"/"every:" prefix)
//   - HH:MM span: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
//   - cron "@every" descriptor: "@every 45s"
//
// Calendar cron expressions ("*/5 * * * *", "@hourly", "cron:..."
// calendar forms) parse but are rejected: they anchor to wall-clock
// fields, which a wrapping monotonic loop cannot honor.
type Spec struct {
	Every  time.Duration
	Source string // "duration" | "hhmm" | "cron-every"
	Raw    string
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	// standard 5-field parser plus descriptors, matching crontab tooling
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Parse normalizes a schedule string into a fixed interval.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	// Prefixes (explicit)
	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(raw, expr)
	}
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			d, src, err := parseInterval(strings.TrimSpace(s[len(prefix):]))
			if err != nil {
				return Spec{}, err
			}
			return Spec{Every: d, Source: src, Raw: raw}, nil
		}
	}

	// Heuristics:
	// - any whitespace or leading '@' => cron syntax
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(raw, s)
	}

	// - HH:MM => interval span
	if reHHMM.MatchString(s) {
		d, err := parseHHMM(s)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Every: d, Source: "hhmm", Raw: raw}, nil
	}

	// - Go duration => interval span
	d, err := time.ParseDuration(s)
	if err == nil {
		if d <= 0 {
			return Spec{}, fmt.Errorf("interval must be > 0")
		}
		return Spec{Every: d, Source: "duration", Raw: raw}, nil
	}

	return Spec{}, fmt.Errorf(
		"invalid schedule %q (use a duration like '55m', HH:MM like '02:30', or '@every 45s')",
		raw,
	)
}

// parseCron accepts cron syntax only when it reduces to a constant
// delay. Calendar expressions are an error, not an approximation.
func parseCron(raw, expr string) (Spec, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	cd, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return Spec{}, fmt.Errorf(
			"calendar schedule %q not supported: tasks run on monotonic intervals (use '@every 45s' or a duration)",
			expr,
		)
	}
	if cd.Delay <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Every: cd.Delay, Source: "cron-every", Raw: raw}, nil
}

func parseInterval(v string) (time.Duration, string, error) {
	if v == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMM(v)
		return d, "hhmm", err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q (use HH:MM or a Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("interval must be > 0")
	}
	return d, "duration", nil
}

func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// safe parse: hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
