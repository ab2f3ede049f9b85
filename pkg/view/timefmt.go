package view

import (
	"fmt"
	"time"
)

// FormatMessageTime renders a message timestamp (unix nanoseconds)
// relative to now: time-only for today, a label for yesterday, the
// weekday within the same ISO week, month/day within the same year and
// the full date otherwise.
func FormatMessageTime(tsNS int64, now time.Time, loc Locale) string {
	t := time.Unix(0, tsNS).In(now.Location())

	if sameDay(t, now) {
		return t.Format("15:04")
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return loc.Yesterday
	}
	if ty, tw := t.ISOWeek(); true {
		if ny, nw := now.ISOWeek(); ty == ny && tw == nw {
			return loc.weekdays[int(t.Weekday())]
		}
	}
	month := loc.months[int(t.Month())-1]
	if t.Year() == now.Year() {
		if loc.dayFirst {
			return fmt.Sprintf("%d %s", t.Day(), month)
		}
		return fmt.Sprintf("%s %d", month, t.Day())
	}
	if loc.dayFirst {
		return fmt.Sprintf("%d %s %d", t.Day(), month, t.Year())
	}
	return fmt.Sprintf("%s %d, %d", month, t.Day(), t.Year())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
