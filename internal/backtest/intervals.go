package backtest

import "time"

const _day = 24 * time.Hour

type WeekInterval struct {
	Start time.Time
	End   time.Time
}

// SplitIntoWeeks splits [from, to] into Monday to Sunday intervals. The first
// and last intervals are clipped to from and to.
func SplitIntoWeeks(from, to time.Time) []WeekInterval {
	var intervals []WeekInterval

	current := from.Truncate(_day)
	end := to.Truncate(_day)

	if current.After(end) {
		return intervals
	}

	current = findNextMonday(current)
	if current.After(end) {
		intervals = append(intervals, WeekInterval{
			Start: from,
			End:   end.Add(_day - time.Nanosecond),
		})
		return intervals
	}

	firstSunday := current.Add(-_day)
	if firstSunday.After(from) || firstSunday.Equal(from.Truncate(_day)) {
		intervals = append(intervals, WeekInterval{
			Start: from,
			End:   firstSunday.Add(_day - time.Nanosecond),
		})
	}

	for {
		nextSunday := current.Add(6 * _day)
		if nextSunday.After(end) {
			break
		}

		intervals = append(intervals, WeekInterval{
			Start: current,
			End:   nextSunday.Add(_day - time.Nanosecond),
		})

		current = current.Add(7 * _day)
	}

	if current.Before(end) || current.Equal(end) {
		intervals = append(intervals, WeekInterval{
			Start: current,
			End:   end.Add(_day - time.Nanosecond),
		})
	}

	return intervals
}

func findNextMonday(t time.Time) time.Time {
	weekday := t.Weekday()
	daysUntilMonday := (8 - int(weekday)) % 7
	return t.AddDate(0, 0, daysUntilMonday)
}

func DivideIntoHours(from, to time.Time) []time.Time {
	hours := make([]time.Time, 0, int(to.Sub(from).Hours()))
	for from.Before(to) {
		hours = append(hours, from)
		from = from.Add(1 * time.Hour)
	}

	return hours
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// DailyBusinessDays lists midnight UTC of every weekday in [from, to].
func DailyBusinessDays(from, to time.Time) []time.Time {
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for _, w := range SplitIntoWeeks(from.UTC(), to.UTC()) {
		for d := w.Start.Truncate(_day); !d.After(w.End); d = d.Add(_day) {
			if !isWeekend(d) {
				days = append(days, d)
			}
		}
	}
	return days
}
