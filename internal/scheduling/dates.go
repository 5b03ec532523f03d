package scheduling

import (
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Reminders fire this many days before the scheduled date.
const reminderLeadDays = 7

// Advance returns the next occurrence after d for the given frequency.
// Month and year steps use calendar arithmetic, so day-of-month overflow
// normalizes forward (Jan 31 + 1 month lands in early March). The second
// return value is false for an unknown frequency, which terminates the
// recurrence.
func Advance(d time.Time, f models.Frequency) (time.Time, bool) {
	switch f {
	case models.FrequencyDaily:
		return d.AddDate(0, 0, 1), true
	case models.FrequencyWeekly:
		return d.AddDate(0, 0, 7), true
	case models.FrequencyBiWeekly:
		return d.AddDate(0, 0, 14), true
	case models.FrequencyMonthly:
		return d.AddDate(0, 1, 0), true
	case models.FrequencyQuarterly:
		return d.AddDate(0, 3, 0), true
	case models.FrequencySemiAnnual:
		return d.AddDate(0, 6, 0), true
	case models.FrequencyAnnual:
		return d.AddDate(1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// ReminderFor derives the reminder date from a scheduled date.
func ReminderFor(scheduled time.Time) time.Time {
	return scheduled.AddDate(0, 0, -reminderLeadDays)
}

// DayStart returns midnight at the start of t's day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd returns the last second of t's day.
func DayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// ParseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
