// Package recurrence computes due dates for recurring schedules. It is pure:
// no I/O, the only failure mode is a schedule whose configuration is invalid.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/crucial707/inspect-ops/internal/models"
)

// ErrInvalidConfiguration indicates a schedule whose frequency, interval,
// time-of-day, or timezone cannot be interpreted.
var ErrInvalidConfiguration = errors.New("invalid schedule configuration")

// NextDue returns the next occurrence strictly after reference (or after
// StartDate when that is still in the future): one step of Interval in the
// schedule's frequency unit from max(reference, StartDate).
//
// An overdue schedule jumps to the next slot after reference; missed slots
// are skipped, not replayed.
//
// Forcing DayOfMonth after the month step does not clamp to the last valid
// day of the target month: a day-of-month 31 schedule landing in February
// normalizes into early March. Callers and tests rely on that exact behavior.
func NextDue(s *models.RecurringSchedule, reference time.Time) (time.Time, error) {
	loc, err := location(s.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	interval := s.Interval
	if interval < 1 {
		interval = 1
	}

	base := reference
	if s.StartDate.After(base) {
		base = s.StartDate
	}
	next := base.In(loc)

	switch s.Frequency {
	case models.FrequencyDaily:
		next = next.AddDate(0, 0, interval)
	case models.FrequencyWeekly:
		next = next.AddDate(0, 0, 7*interval)
	case models.FrequencyMonthly:
		next = next.AddDate(0, interval, 0)
		if s.DayOfMonth > 0 {
			next = time.Date(next.Year(), next.Month(), s.DayOfMonth,
				next.Hour(), next.Minute(), next.Second(), next.Nanosecond(), loc)
		}
	case models.FrequencyQuarterly:
		next = next.AddDate(0, 3*interval, 0)
	case models.FrequencyYearly:
		next = next.AddDate(interval, 0, 0)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidConfiguration, s.Frequency)
	}

	if s.TimeOfDay != "" {
		hh, mm, err := parseClock(s.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		next = time.Date(next.Year(), next.Month(), next.Day(), hh, mm, 0, 0, loc)
	}

	return next, nil
}

// InitialDue returns the due date to store when a schedule is created or its
// frequency fields change: the start date itself (with time-of-day applied)
// while it is still ahead of now, otherwise one step past now via NextDue.
func InitialDue(s *models.RecurringSchedule, now time.Time) (time.Time, error) {
	loc, err := location(s.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	first := s.StartDate.In(loc)
	if s.TimeOfDay != "" {
		hh, mm, err := parseClock(s.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		first = time.Date(first.Year(), first.Month(), first.Day(), hh, mm, 0, 0, loc)
	}
	if first.After(now) {
		return first, nil
	}
	return NextDue(s, now)
}

// IsOverdue reports whether nextDue is set and in the past.
func IsOverdue(nextDue *time.Time, now time.Time) bool {
	return nextDue != nil && nextDue.Before(now)
}

// TimeUntilNext renders a categorical label for how far away nextDue is:
// "Not scheduled", "Overdue", "N days", "N hours", or "Less than 1 hour".
func TimeUntilNext(nextDue *time.Time, now time.Time) string {
	if nextDue == nil {
		return "Not scheduled"
	}
	diff := nextDue.Sub(now)
	if diff < 0 {
		return "Overdue"
	}
	days := int(diff / (24 * time.Hour))
	hours := int((diff % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%d days", days)
	}
	if hours > 0 {
		return fmt.Sprintf("%d hours", hours)
	}
	return "Less than 1 hour"
}

// Validate checks the shape of a schedule's recurrence fields so bad
// configurations are rejected at create/update time and never reach
// generation. Returned errors wrap ErrInvalidConfiguration.
func Validate(s *models.RecurringSchedule) error {
	if !models.ValidFrequency(s.Frequency) {
		return fmt.Errorf("%w: unsupported frequency %q", ErrInvalidConfiguration, s.Frequency)
	}
	if s.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidConfiguration, s.Interval)
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidConfiguration)
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidConfiguration)
	}
	if s.DayOfMonth < 0 || s.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month must be 1-31, got %d", ErrInvalidConfiguration, s.DayOfMonth)
	}
	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day of week must be 0-6, got %d", ErrInvalidConfiguration, d)
		}
	}
	if s.TimeOfDay != "" {
		if _, _, err := parseClock(s.TimeOfDay); err != nil {
			return err
		}
	}
	if _, err := location(s.Timezone); err != nil {
		return err
	}
	return nil
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfiguration, tz)
	}
	return loc, nil
}

func parseClock(v string) (hh, mm int, err error) {
	t, perr := time.Parse("15:04", v)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: time must be HH:MM, got %q", ErrInvalidConfiguration, v)
	}
	return t.Hour(), t.Minute(), nil
}
