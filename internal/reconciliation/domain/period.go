package reconciliation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO date layout accepted for period bounds.
	DateLayout       = "2006-01-02"
	timeKeyDayLayout = "20060102"
)

// Period is an inclusive range of civil dates.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates both bounds to their civil dates and checks ordering.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: empty bound", ErrInvalidPeriod)
	}
	p := Period{Start: dateOf(start), End: dateOf(end)}
	if p.Start.After(p.End) {
		return Period{}, fmt.Errorf("%w: %s after %s", ErrInvalidPeriod, p.Start.Format(DateLayout), p.End.Format(DateLayout))
	}
	return p, nil
}

// ParsePeriod parses two ISO dates in loc. A nil loc means UTC.
func ParsePeriod(start, end string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(DateLayout, strings.TrimSpace(start), loc)
	if err != nil {
		return Period{}, fmt.Errorf("%w: start %q", ErrInvalidPeriod, start)
	}
	e, err := time.ParseInLocation(DateLayout, strings.TrimSpace(end), loc)
	if err != nil {
		return Period{}, fmt.Errorf("%w: end %q", ErrInvalidPeriod, end)
	}
	return NewPeriod(s, e)
}

// Range returns the half-open timestamp window [start 00:00, end+1 00:00).
func (p Period) Range() (time.Time, time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

// Contains reports whether ts falls inside the period.
func (p Period) Contains(ts time.Time) bool {
	from, to := p.Range()
	return !ts.Before(from) && ts.Before(to)
}

// Key is the storage key of the period.
func (p Period) Key() string {
	return p.Start.Format(timeKeyDayLayout) + "-" + p.End.Format(timeKeyDayLayout)
}

func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// MarshalJSON renders the period as ISO dates.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{Start: p.Start.Format(DateLayout), End: p.End.Format(DateLayout)})
}

// UnmarshalJSON reads ISO dates as UTC civil dates.
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePeriod(raw.Start, raw.End, time.UTC)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
