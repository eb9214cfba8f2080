// Package calculator holds the pure derivation functions the live views
// and the task gateway compute from: recurrence rollover, countdown
// formatting, and subtask aggregation. No I/O, no clocks; callers pass
// times in.
package calculator

import (
	"time"

	"github.com/hmallik/taskally/internal/models"
)

// NextDueDate returns the due date that follows base for the given
// recurrence. None returns base unchanged.
//
// Monthly uses normalized calendar addition: when the target month is
// shorter than the base day-of-month, the date rolls into the following
// month (Jan 31 + 1 month = Mar 2 in a leap year). This matches the
// upstream behavior and is pinned by tests.
func NextDueDate(base time.Time, recurrence models.Recurrence) time.Time {
	switch recurrence {
	case models.RecurrenceDaily:
		return base.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		return base.AddDate(0, 0, 7)
	case models.RecurrenceMonthly:
		return base.AddDate(0, 1, 0)
	default:
		return base
	}
}
