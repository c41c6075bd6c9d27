// Package clock resolves "now" in the office's fixed civil timezone.
package clock

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/jinzhu/now"
)

// DefaultTimezone is the civil zone all policy decisions are evaluated in.
const DefaultTimezone = "Asia/Manila"

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// ZoneClock reports wall time in a single fixed location regardless of the
// host or caller zone.
type ZoneClock struct {
	loc *time.Location
}

func New(timezone string) (*ZoneClock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &ZoneClock{loc: loc}, nil
}

func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *ZoneClock) Location() *time.Location {
	return c.loc
}

// Today returns midnight of the current civil day in the clock's zone.
func Today(c Clock) time.Time {
	return StartOfDay(c.Now(), c.Location())
}

// StartOfDay returns midnight of t's civil date as observed in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return now.With(t.In(loc)).BeginningOfDay()
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return d, nil
}

// Fixed is a Clock frozen at a settable instant. It is safe for concurrent use.
type Fixed struct {
	mu  sync.Mutex
	t   time.Time
	loc *time.Location
}

func NewFixed(t time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{t: t, loc: loc}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t.In(f.loc)
}

func (f *Fixed) Location() *time.Location {
	return f.loc
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}
