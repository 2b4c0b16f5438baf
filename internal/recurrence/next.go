package recurrence

import "time"

// Next returns the first firing at hour:minute in loc that is strictly after
// `after`. Wall-clock times are resolved per day, so a daily 08:00 reminder
// stays at 08:00 across DST changes.
func (r Rule) Next(after time.Time, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)
	// A weekly rule repeats within 7 days; 8 covers today's slot having passed.
	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if !candidate.After(after) {
			continue
		}
		if r.matches(candidate.Weekday()) {
			return candidate
		}
	}
	return time.Time{}
}

func (r Rule) matches(wd time.Weekday) bool {
	if r.Freq == Daily {
		return true
	}
	for _, d := range r.ByDay {
		if d == wd {
			return true
		}
	}
	return false
}
