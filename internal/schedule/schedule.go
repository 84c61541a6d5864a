// Package schedule computes when a backup schedule fires next.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/harmony/internal/domain"
)

var (
	ErrInvalidTime       = errors.New("time must be HH:MM")
	ErrMissingDayOfWeek  = errors.New("weekly schedule requires dayOfWeek 0-6")
	ErrMissingDayOfMonth = errors.New("monthly schedule requires dayOfMonth 1-31")
	ErrNoNextRun         = errors.New("cron expression never fires")
)

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour(), t.Minute(), nil
}

// Location resolves the schedule timezone; empty means UTC.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseCron parses a standard five-field expression (or a @descriptor)
// evaluated in the given timezone.
func ParseCron(expr, tz string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty cron expression")
	}
	if tz != "" && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		expr = "CRON_TZ=" + tz + " " + expr
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return sched, nil
}

// NextRun returns the first instant strictly after now at which s fires.
// Wall-clock arithmetic happens in the schedule timezone.
func NextRun(s domain.BackupSchedule, now time.Time) (time.Time, error) {
	loc, err := Location(s.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	if s.Frequency == domain.FrequencyCustom {
		sched, err := ParseCron(s.CustomCron, s.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		next := sched.Next(local)
		if next.IsZero() {
			return time.Time{}, ErrNoNextRun
		}
		return next, nil
	}

	hour, minute, err := ParseClock(s.Time)
	if err != nil {
		return time.Time{}, err
	}

	switch s.Frequency {
	case domain.FrequencyDaily:
		next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
		}
		return next, nil

	case domain.FrequencyWeekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return time.Time{}, ErrMissingDayOfWeek
		}
		offset := (7 + *s.DayOfWeek - int(local.Weekday())) % 7
		next := time.Date(local.Year(), local.Month(), local.Day()+offset, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(local.Year(), local.Month(), local.Day()+offset+7, hour, minute, 0, 0, loc)
		}
		return next, nil

	case domain.FrequencyMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return time.Time{}, ErrMissingDayOfMonth
		}
		next := monthDay(local.Year(), local.Month(), *s.DayOfMonth, hour, minute, loc)
		if !next.After(now) {
			next = monthDay(local.Year(), local.Month()+1, *s.DayOfMonth, hour, minute, loc)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", s.Frequency)
	}
}

// monthDay builds day-of-month dom in the given month, clamped to the
// month's last day.
func monthDay(year int, month time.Month, dom, hour, minute int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(dom, last), hour, minute, 0, 0, loc)
}

// Cron adapts a BackupSchedule to robfig's cron.Schedule so the daemon's
// cron runner can drive it. A zero time means the schedule cannot fire.
type Cron struct {
	Schedule domain.BackupSchedule
}

func (c Cron) Next(t time.Time) time.Time {
	next, err := NextRun(c.Schedule, t)
	if err != nil {
		return time.Time{}
	}
	return next
}
