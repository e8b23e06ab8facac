package schedule

import (
	"testing"
	"time"
)

func TestParseIntervalForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		want   time.Duration
		source string
	}{
		{"plain duration", "45s", 45 * time.Second, "duration"},
		{"compound duration", "2h30m", 150 * time.Minute, "duration"},
		{"every prefix", "every:45s", 45 * time.Second, "duration"},
		{"interval prefix hhmm", "interval:01:30", 90 * time.Minute, "hhmm"},
		{"hhmm", "00:50", 50 * time.Minute, "hhmm"},
		{"hhmm many hours", "100:00", 100 * time.Hour, "hhmm"},
		{"at-every", "@every 45s", 45 * time.Second, "cron-every"},
		{"at-every compound", "@every 1m30s", 90 * time.Second, "cron-every"},
		{"forced cron every", "cron:@every 10s", 10 * time.Second, "cron-every"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.raw, err)
			}
			if got.Every != tt.want {
				t.Fatalf("Parse(%q).Every = %v, want %v", tt.raw, got.Every, tt.want)
			}
			if got.Source != tt.source {
				t.Fatalf("Parse(%q).Source = %q, want %q", tt.raw, got.Source, tt.source)
			}
			if got.Raw != tt.raw {
				t.Fatalf("Parse(%q).Raw = %q", tt.raw, got.Raw)
			}
		})
	}
}

func TestParseRejectsCalendarAndGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"five-field cron", "*/5 * * * *"},
		{"hourly descriptor", "@hourly"},
		{"daily descriptor", "@daily"},
		{"forced cron calendar", "cron:0 12 * * *"},
		{"garbage", "soonish"},
		{"zero interval", "0s"},
		{"negative interval", "every:-5s"},
		{"minutes out of range", "01:75"},
		{"bare cron prefix", "cron:"},
		{"bare every prefix", "every:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(tt.raw); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.raw)
			}
		})
	}
}
