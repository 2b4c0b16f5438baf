// Package recurrence models the repeat rules used by recurring notification
// registrations: every day, or every week on a set of weekdays.
package recurrence

import (
	"fmt"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
)

var freqNames = map[Freq]string{
	Daily:  "DAILY",
	Weekly: "WEEKLY",
}

var freqFromName = map[string]Freq{
	"DAILY":  Daily,
	"WEEKLY": Weekly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

type Rule struct {
	Freq  Freq
	ByDay []time.Weekday // WEEKLY only; empty is invalid for weekly rules
}

// DailyRule fires every day.
func DailyRule() Rule {
	return Rule{Freq: Daily}
}

// WeeklyRule fires once a week on the given ISO weekday (1=Mon .. 7=Sun).
func WeeklyRule(isoWeekday int) (Rule, error) {
	wd, err := FromISO(isoWeekday)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Freq: Weekly, ByDay: []time.Weekday{wd}}, nil
}

// FromISO converts 1..7 (Mon..Sun) to a time.Weekday.
func FromISO(d int) (time.Weekday, error) {
	if d < 1 || d > 7 {
		return 0, fmt.Errorf("weekday %d out of range 1..7", d)
	}
	return time.Weekday(d % 7), nil
}

// ToISO converts a time.Weekday to 1..7 (Mon..Sun).
func ToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// Parse parses an RRULE string like "FREQ=WEEKLY;BYDAY=MO,WE".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	var r Rule
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, ok := dayNames[strings.TrimSpace(d)]
				if !ok {
					return Rule{}, fmt.Errorf("unknown day: %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if r.Freq == Weekly && len(r.ByDay) == 0 {
		return Rule{}, fmt.Errorf("WEEKLY requires BYDAY")
	}
	if r.Freq == Daily && len(r.ByDay) > 0 {
		return Rule{}, fmt.Errorf("BYDAY is only valid with WEEKLY")
	}

	return r, nil
}

// String serializes the rule back to an RRULE string.
func (r Rule) String() string {
	s := "FREQ=" + freqNames[r.Freq]
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = dayAbbrev[d]
		}
		s += ";BYDAY=" + strings.Join(days, ",")
	}
	return s
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		return "Repeats daily"
	case Weekly:
		names := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			names[i] = d.String()[:3]
		}
		return "Repeats weekly on " + strings.Join(names, ", ")
	}
	return ""
}
