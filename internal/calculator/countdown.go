package calculator

import (
	"fmt"
	"time"
)

// Overdue is the sentinel callers surface when the remaining time is
// strictly negative. FormatRemaining itself never returns it; a deadline
// hit exactly now formats as the zero string.
const Overdue = "Task is overdue!"

// FormatRemaining renders a duration as "Xd Yh Zm" with floor division at
// each step. Non-positive durations render as "0d 0h 0m". There is no
// seconds component.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0d 0h 0m"
	}
	totalMinutes := int64(d / time.Minute)
	days := totalMinutes / (60 * 24)
	totalMinutes %= 60 * 24
	hours := totalMinutes / 60
	minutes := totalMinutes % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// Countdown formats the time remaining until due, as seen from now.
// Strictly overdue deadlines return the Overdue sentinel.
func Countdown(now, due time.Time) string {
	remaining := due.Sub(now)
	if remaining < 0 {
		return Overdue
	}
	return FormatRemaining(remaining)
}
