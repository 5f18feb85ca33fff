package appointment

import (
	"fmt"
	"strings"
	"time"
)

const DefaultDuration = 30 * time.Minute

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates start and end, defaulting End to start+dflt when end
// is nil. A non-positive dflt falls back to DefaultDuration.
func NewInterval(start time.Time, end *time.Time, dflt time.Duration) (Interval, error) {
	if dflt <= 0 {
		dflt = DefaultDuration
	}
	if start.IsZero() {
		return Interval{}, fmt.Errorf("%w: start is required", ErrInvalidInterval)
	}
	iv := Interval{Start: start.UTC(), End: start.UTC().Add(dflt)}
	if end != nil {
		if end.IsZero() {
			return Interval{}, fmt.Errorf("%w: end is required", ErrInvalidInterval)
		}
		iv.End = end.UTC()
	}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func (iv Interval) Validate() error {
	if !iv.End.After(iv.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidInterval)
	}
	return nil
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

func (iv Interval) Shift(d time.Duration) Interval {
	return Interval{Start: iv.Start.Add(d), End: iv.End.Add(d)}
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// ParseInstant accepts RFC 3339 timestamps with or without fractional seconds.
func ParseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 timestamp", ErrInvalidInterval, raw)
	}
	return t, nil
}

// EndOfDay returns the last millisecond of the calendar day containing t in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}
