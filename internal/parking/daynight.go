package parking

import "time"

// dayStartHour divides the two buckets: day is [08:00, 24:00) local clock
// time, night is [00:00, 08:00).
const dayStartHour = 8

// SplitDayNight splits the interval between start and end into day-bucket and
// night-bucket minutes. Inputs are truncated to whole minutes first, then the
// interval is walked segment by segment to the next bucket boundary, so spans
// crossing any number of midnights and 08:00 edges accumulate correctly. For
// minute-aligned inputs day+night always equals the whole interval in minutes.
// A zero-length (or inverted) interval yields zero for both buckets.
func SplitDayNight(start, end time.Time) (day, night int) {
	start = start.Truncate(time.Minute)
	end = end.Truncate(time.Minute)

	cur := start
	for cur.Before(end) {
		boundary := nextBoundary(cur)
		if boundary.After(end) {
			boundary = end
		}
		minutes := int(boundary.Sub(cur) / time.Minute)
		if cur.Hour() >= dayStartHour {
			day += minutes
		} else {
			night += minutes
		}
		cur = boundary
	}
	return day, night
}

// nextBoundary returns the next bucket edge strictly after t: the next
// midnight while inside the day bucket, the next 08:00 while inside the
// night bucket. Each edge is at most 24h away, so the walk terminates.
func nextBoundary(t time.Time) time.Time {
	y, m, d := t.Date()
	if t.Hour() >= dayStartHour {
		return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(y, m, d, dayStartHour, 0, 0, 0, t.Location())
}
