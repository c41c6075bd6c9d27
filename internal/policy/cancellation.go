// Package policy gates patient self-service actions.
package policy

import (
	"fmt"
	"time"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/pkg/errors"
)

const (
	DefaultWindow  = 24 * time.Hour
	DefaultAMStart = "08:00"
	DefaultPMStart = "13:00"
)

type Config struct {
	Window  time.Duration
	AMStart string
	PMStart string
}

// CancellationPolicy evaluates the minimum notice a patient must give, in a
// single civil timezone.
type CancellationPolicy struct {
	loc     *time.Location
	window  time.Duration
	amStart string
	pmStart string
}

func NewCancellationPolicy(loc *time.Location, cfg Config) *CancellationPolicy {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AMStart == "" {
		cfg.AMStart = DefaultAMStart
	}
	if cfg.PMStart == "" {
		cfg.PMStart = DefaultPMStart
	}
	return &CancellationPolicy{
		loc:     loc,
		window:  cfg.Window,
		amStart: cfg.AMStart,
		pmStart: cfg.PMStart,
	}
}

func (p *CancellationPolicy) Window() time.Duration {
	return p.window
}

// CanCancel reports whether appointmentDate at appointmentTime (HH:MM) is at
// least the window away from now. The calendar date is read from its
// year/month/day fields and placed in the policy zone, so the caller's zone
// never shifts the cutoff. An unparseable time denies.
func (p *CancellationPolicy) CanCancel(appointmentDate time.Time, appointmentTime string, now time.Time) bool {
	at, err := p.scheduledAt(appointmentDate, appointmentTime)
	if err != nil {
		return false
	}
	return at.Sub(now) >= p.window
}

// Check applies the policy to an appointment, resolving an empty time to the
// start of its AM/PM block.
func (p *CancellationPolicy) Check(apt *model.Appointment, now time.Time) error {
	slot := p.ResolveTime(apt)
	if p.CanCancel(apt.AppointmentDate, slot, now) {
		return nil
	}
	return errors.PolicyDenied("cancellation_window", fmt.Sprintf(
		"appointments must be cancelled at least %s before %s %s",
		p.window, apt.AppointmentDate.Format(model.AppointmentDateLayout), slot,
	))
}

// ResolveTime returns the appointment time, or the block start when unset.
func (p *CancellationPolicy) ResolveTime(apt *model.Appointment) string {
	if apt.AppointmentTime != "" {
		return apt.AppointmentTime
	}
	if apt.TimeBlock == model.TimeBlockPM {
		return p.pmStart
	}
	return p.amStart
}

func (p *CancellationPolicy) scheduledAt(date time.Time, hhmm string) (time.Time, error) {
	clock, err := time.Parse(model.AppointmentTimeLayout, trimSeconds(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse appointment time %q: %w", hhmm, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, p.loc), nil
}

// trimSeconds accepts the HH:MM:SS form postgres returns for TIME columns.
func trimSeconds(s string) string {
	if len(s) == len("15:04:05") && s[5] == ':' {
		return s[:5]
	}
	return s
}
