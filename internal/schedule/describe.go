package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

// Describe renders a schedule for humans, e.g. "Weekly on Sunday at 02:00".
func Describe(s domain.BackupSchedule) string {
	var desc string

	switch s.Frequency {
	case domain.FrequencyDaily:
		desc = fmt.Sprintf("Daily at %s", s.Time)
	case domain.FrequencyWeekly:
		day := "Sunday"
		if s.DayOfWeek != nil && *s.DayOfWeek >= 0 && *s.DayOfWeek <= 6 {
			day = time.Weekday(*s.DayOfWeek).String()
		}
		desc = fmt.Sprintf("Weekly on %s at %s", day, s.Time)
	case domain.FrequencyMonthly:
		dom := 1
		if s.DayOfMonth != nil {
			dom = *s.DayOfMonth
		}
		desc = fmt.Sprintf("Monthly on the %s at %s", ordinal(dom), s.Time)
	case domain.FrequencyCustom:
		desc = fmt.Sprintf("Custom schedule (%s)", strings.TrimSpace(s.CustomCron))
	default:
		return "Unscheduled"
	}

	if s.Timezone != "" && s.Timezone != "UTC" {
		desc += " " + s.Timezone
	}
	if !s.Enabled {
		desc += " (disabled)"
	}
	return desc
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
