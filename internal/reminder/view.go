package reminder

import (
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
)

// Filter narrows the list view. Zero values keep everything except
// completed reminders.
type Filter struct {
	IncludeCompleted bool
	Type             model.ReminderType
	Search           string
}

// Item is a reminder in the view, flagged when its notification is ringing.
type Item struct {
	model.Reminder
	Active bool `json:"active"`
}

// Group holds the reminders falling on one calendar date.
type Group struct {
	Date  string `json:"date"`
	When  string `json:"when"` // today, upcoming or past
	Items []Item `json:"items"`

	day time.Time
}

const (
	WhenToday    = "today"
	WhenUpcoming = "upcoming"
	WhenPast     = "past"
)

// ListView filters reminders and groups them by calendar date in now's
// location. Today's group comes first, then future dates ascending, then past
// dates ascending. Items keep the order they were given in.
func ListView(reminders []model.Reminder, active map[string]bool, f Filter, now time.Time) []Group {
	loc := now.Location()
	today := dateOf(now, loc)
	search := strings.ToLower(f.Search)

	byDay := make(map[time.Time]*Group)
	var groups []*Group

	for _, r := range reminders {
		if r.IsCompleted && !f.IncludeCompleted {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Title), search) &&
			!strings.Contains(strings.ToLower(r.Description), search) {
			continue
		}

		day := dateOf(r.DateTime, loc)
		g, ok := byDay[day]
		if !ok {
			g = &Group{Date: day.Format(time.DateOnly), day: day}
			switch {
			case day.Equal(today):
				g.When = WhenToday
			case day.After(today):
				g.When = WhenUpcoming
			default:
				g.When = WhenPast
			}
			byDay[day] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, Item{Reminder: r, Active: active[r.ID]})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := rank(groups[i].When), rank(groups[j].When)
		if ri != rj {
			return ri < rj
		}
		return groups[i].day.Before(groups[j].day)
	})

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

func rank(when string) int {
	switch when {
	case WhenToday:
		return 0
	case WhenUpcoming:
		return 1
	}
	return 2
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
