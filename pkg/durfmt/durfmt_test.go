package durfmt

import (
	"math/rand"
	"testing"
	"time"
)

func TestFormatPicksCoarsestTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seconds uint32
		all     bool
		want    string
	}{
		{"seconds only", 59, false, "59s"},
		{"minutes", 125, false, "2m 05s"},
		{"hours", 3725, false, "1h 02m 05s"},
		{"days", 90000, false, "1d 01h 00m 00s"},
		{"all forces days", 30, true, "0d 00h 00m 30s"},
		{"zero", 0, false, "0s"},
		{"exact minute", 60, false, "1m 00s"},
		{"exact hour", 3600, false, "1h 00m 00s"},
		{"exact day", 86400, false, "1d 00h 00m 00s"},
		{"last second before a minute", 59, false, "59s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tt.seconds, tt.all); got != tt.want {
				t.Fatalf("Format(%d, %v) = %q, want %q", tt.seconds, tt.all, got, tt.want)
			}
		})
	}
}

func TestTemplatesAreCallerSupplied(t *testing.T) {
	t.Parallel()

	tpl := Templates{
		Seconds: "%d sec",
		Minutes: "%dm%02ds",
		Hours:   "%d:%02d:%02d",
		Days:    "%dd+%02d:%02d:%02d",
	}
	if got := tpl.Format(3725, false); got != "1:02:05" {
		t.Fatalf("Format(3725) = %q, want %q", got, "1:02:05")
	}
	if got := tpl.Format(99, false); got != "1m39s" {
		t.Fatalf("Format(99) = %q, want %q", got, "1m39s")
	}
	if got := tpl.Format(9, false); got != "9 sec" {
		t.Fatalf("Format(9) = %q, want %q", got, "9 sec")
	}
	if got := tpl.Format(90125, false); got != "1d+01:02:05" {
		t.Fatalf("Format(90125) = %q, want %q", got, "1d+01:02:05")
	}
}

func TestAppendFormatReusesBuffer(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 0, 32)
	buf = Default.AppendFormat(buf, 125, false)
	if string(buf) != "2m 05s" {
		t.Fatalf("AppendFormat(125) = %q, want %q", buf, "2m 05s")
	}
	buf = Default.AppendFormat(buf[:0], 59, false)
	if string(buf) != "59s" {
		t.Fatalf("AppendFormat(59) = %q, want %q", buf, "59s")
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	if got := FormatDuration(2*time.Minute+5*time.Second, false); got != "2m 05s" {
		t.Fatalf("FormatDuration(2m5s) = %q, want %q", got, "2m 05s")
	}
	if got := FormatDuration(-time.Minute, false); got != "0s" {
		t.Fatalf("FormatDuration(-1m) = %q, want %q", got, "0s")
	}
	if got := FormatDuration(1500*time.Millisecond, false); got != "1s" {
		t.Fatalf("FormatDuration(1.5s) = %q, want %q", got, "1s")
	}
}

func TestSplitHourComponentEquivalence(t *testing.T) {
	t.Parallel()

	// The hour component computed as (seconds % 86400) / 3600 must agree
	// with seconds / 3600 % 24 everywhere, including across day and hour
	// boundaries, and the components must recompose losslessly.
	samples := make([]uint32, 0, 10_200)
	for _, base := range []uint32{0, 3600, 86400, 2 * 86400, 30 * 86400, 365 * 86400} {
		for _, off := range []uint32{0, 1, 59, 60, 61, 3599, 3600, 3601, 86399} {
			samples = append(samples, base+off)
		}
	}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10_000; i++ {
		samples = append(samples, rnd.Uint32())
	}

	for _, s := range samples {
		p := Split(s)
		if alt := s / 3600 % 24; p.Hours != alt {
			t.Fatalf("Split(%d).Hours = %d, want %d", s, p.Hours, alt)
		}
		if p.Hours > 23 || p.Minutes > 59 || p.Seconds > 59 {
			t.Fatalf("Split(%d) = %+v has out-of-range components", s, p)
		}
		back := p.Days*86400 + p.Hours*3600 + p.Minutes*60 + p.Seconds
		if back != s {
			t.Fatalf("Split(%d) recomposes to %d", s, back)
		}
	}
}
