// Package durfmt renders second counts as day/hour/minute/second
// components through caller-supplied fmt templates, picking the
// template that matches the coarsest nonzero component.
package durfmt

import (
	"fmt"
	"time"
)

// Parts is a second count decomposed into calendar-free components.
// Days absorb everything above 24h, so Hours stays below 24 and Minutes
// and Seconds below 60.
type Parts struct {
	Days    uint32
	Hours   uint32
	Minutes uint32
	Seconds uint32
}

// Split decomposes a second count.
func Split(seconds uint32) Parts {
	return Parts{
		Days:    seconds / 86400,
		Hours:   seconds % 86400 / 3600,
		Minutes: seconds / 60 % 60,
		Seconds: seconds % 60,
	}
}

// Templates are the fmt templates Format picks from. Seconds takes one
// integer verb (s), Minutes two (m, s), Hours three (h, m, s) and Days
// four (d, h, m, s).
type Templates struct {
	Seconds string
	Minutes string
	Hours   string
	Days    string
}

// Default renders like "1h 02m 05s".
var Default = Templates{
	Seconds: "%ds",
	Minutes: "%dm %02ds",
	Hours:   "%dh %02dm %02ds",
	Days:    "%dd %02dh %02dm %02ds",
}

// Format renders seconds through the template matching its coarsest
// nonzero component. all forces the Days template regardless of value,
// which keeps a column of readings aligned.
func (t Templates) Format(seconds uint32, all bool) string {
	p := Split(seconds)
	switch {
	case all || p.Days > 0:
		return fmt.Sprintf(t.Days, p.Days, p.Hours, p.Minutes, p.Seconds)
	case p.Hours > 0:
		return fmt.Sprintf(t.Hours, p.Hours, p.Minutes, p.Seconds)
	case p.Minutes > 0:
		return fmt.Sprintf(t.Minutes, p.Minutes, p.Seconds)
	default:
		return fmt.Sprintf(t.Seconds, p.Seconds)
	}
}

// AppendFormat renders like Format into dst, following the append
// convention. Callers reuse a scratch buffer with dst[:0] to format
// without allocating.
func (t Templates) AppendFormat(dst []byte, seconds uint32, all bool) []byte {
	p := Split(seconds)
	switch {
	case all || p.Days > 0:
		return fmt.Appendf(dst, t.Days, p.Days, p.Hours, p.Minutes, p.Seconds)
	case p.Hours > 0:
		return fmt.Appendf(dst, t.Hours, p.Hours, p.Minutes, p.Seconds)
	case p.Minutes > 0:
		return fmt.Appendf(dst, t.Minutes, p.Minutes, p.Seconds)
	default:
		return fmt.Appendf(dst, t.Seconds, p.Seconds)
	}
}

// Format renders seconds through the Default templates.
func Format(seconds uint32, all bool) string {
	return Default.Format(seconds, all)
}

// FormatDuration renders a duration through the Default templates.
// Negative durations render as zero; sub-second precision truncates.
func FormatDuration(d time.Duration, all bool) string {
	if d < 0 {
		d = 0
	}
	return Default.Format(uint32(d/time.Second), all)
}
