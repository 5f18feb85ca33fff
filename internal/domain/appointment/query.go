package appointment

import "time"

// ListAppointmentsQuery filters by calendar components of scheduled_at. Each
// component is optional and applies independently.
type ListAppointmentsQuery struct {
	Year  *int
	Month *int
	Day   *int
}

// Range returns the narrowest contiguous [from, to) range implied by the
// supplied components, or nils when no year is given.
func (q ListAppointmentsQuery) Range(loc *time.Location) (from, to *time.Time) {
	if q.Year == nil {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	var start, end time.Time
	switch {
	case q.Month != nil && q.Day != nil:
		start = time.Date(*q.Year, time.Month(*q.Month), *q.Day, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	case q.Month != nil:
		start = time.Date(*q.Year, time.Month(*q.Month), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(*q.Year, time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, 0)
	}
	return &start, &end
}

// Matches reports whether t satisfies every supplied component in loc.
func (q ListAppointmentsQuery) Matches(t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if q.Year != nil && local.Year() != *q.Year {
		return false
	}
	if q.Month != nil && int(local.Month()) != *q.Month {
		return false
	}
	if q.Day != nil && local.Day() != *q.Day {
		return false
	}
	return true
}
