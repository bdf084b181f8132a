package dates

import (
	"fmt"
	"time"
)

// FormatRange renders an event window in the Catalan style used across
// the site, e.g. "12 de març del 2026" or "12 - 14 de març" for a
// multi-day run inside one month. The end part is empty for single-day
// events.
func FormatRange(start, end time.Time) (string, string) {
	multipleDays := start.Day() != end.Day()
	sameMonth := start.Month() == end.Month()
	sameYear := start.Year() == end.Year()

	var formattedStart string
	switch {
	case multipleDays && sameMonth:
		formattedStart = fmt.Sprintf("%d", start.Day())
	case multipleDays && sameYear:
		formattedStart = fmt.Sprintf("%d de %s", start.Day(), catalanMonths[start.Month()-1])
	default:
		formattedStart = fmt.Sprintf("%d de %s del %d", start.Day(), catalanMonths[start.Month()-1], start.Year())
	}

	if !multipleDays {
		return formattedStart, ""
	}

	formattedEnd := fmt.Sprintf("%d de %s del %d", end.Day(), catalanMonths[end.Month()-1], end.Year())
	return formattedStart, formattedEnd
}

// WeekdayName returns the Catalan name of t's weekday.
func WeekdayName(t time.Time) string {
	return catalanDays[int(t.Weekday())]
}

// DurationInHours renders the event duration for display. Durations of
// a day or longer return empty, those events read better without one.
func DurationInHours(start, end time.Time) string {
	d := end.Sub(start)
	if d <= 0 || d >= 24*time.Hour {
		return ""
	}

	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	if hours == 0 {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh %dmin", hours, minutes)
}
