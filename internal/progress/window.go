package progress

import "time"

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func endOfRange(nextStart time.Time) time.Time {
	return nextStart.Add(-time.Millisecond)
}

// WeekWindow runs Monday 00:00:00.000 through Sunday 23:59:59.999 of now's week.
// A Sunday belongs to the week that started on the Monday before it.
func WeekWindow(now time.Time) Window {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, now.Location())
	return Window{
		Start: start,
		End:   endOfRange(start.AddDate(0, 0, 7)),
	}
}

func MonthWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{
		Start: start,
		End:   endOfRange(start.AddDate(0, 1, 0)),
	}
}

func YearWindow(now time.Time) Window {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return Window{
		Start: start,
		End:   endOfRange(start.AddDate(1, 0, 0)),
	}
}
