package leave

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Calendar describes which days count against the leave balance.
type Calendar struct {
	Weekend  []time.Weekday
	Holidays []civil.Date
}

// EgyptCalendar is the Sunday-to-Thursday work week used by the demo tenant.
func EgyptCalendar(holidays ...civil.Date) Calendar {
	return Calendar{
		Weekend:  []time.Weekday{time.Friday, time.Saturday},
		Holidays: holidays,
	}
}

func (c Calendar) IsWorkingDay(d civil.Date) bool {
	wd := d.In(time.UTC).Weekday()
	for _, w := range c.Weekend {
		if w == wd {
			return false
		}
	}
	for _, h := range c.Holidays {
		if h == d {
			return false
		}
	}
	return true
}

// WorkingDays counts working days in the inclusive range [start, end]. An
// inverted range counts as zero.
func (c Calendar) WorkingDays(start, end civil.Date) int {
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

func (c Calendar) WeekendNames() []string {
	out := make([]string, 0, len(c.Weekend))
	for _, w := range c.Weekend {
		out = append(out, w.String())
	}
	return out
}

// ParseWeekdays reads names such as "friday" or "Sat".
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if name == full || name == full[:3] {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", raw)
		}
	}
	return out, nil
}

// ParseDates reads a list of YYYY-MM-DD dates, rejecting malformed entries.
func ParseDates(values []string) ([]civil.Date, error) {
	out := make([]civil.Date, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		d, err := civil.ParseDate(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", v, err)
		}
		out = append(out, d)
	}
	return out, nil
}
