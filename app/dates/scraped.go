package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/esdeveniments/agenda-comb/app/sources"
)

var catalanMonths = []string{
	"gener",
	"febrer",
	"març",
	"abril",
	"maig",
	"juny",
	"juliol",
	"agost",
	"setembre",
	"octubre",
	"novembre",
	"desembre",
}

var catalanDays = []string{
	"Diumenge",
	"Dilluns",
	"Dimarts",
	"Dimecres",
	"Dijous",
	"Divendres",
	"Dissabte",
}

// monthNumber resolves a Catalan month name, accepting numeric values
// and truncated names like "gen." as published by some agendas.
func monthNumber(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, fmt.Errorf("invalid month value: %s", value)
	}

	lower := strings.ToLower(strings.TrimSuffix(value, "."))
	for i, name := range catalanMonths {
		if strings.Contains(name, lower) {
			return i + 1, nil
		}
	}

	return 0, fmt.Errorf("invalid month value: %s", value)
}

// ParseScraped interprets the free-text date and time strings scraped
// from a city agenda page using that city's capture patterns. The year
// defaults to the current one because most agendas omit it.
func (r *Resolver) ParseScraped(dateText, timeText string, city *sources.ScraperCity, now time.Time) (time.Time, error) {
	match := city.DatePattern().FindStringSubmatch(dateText)
	if match == nil {
		return time.Time{}, fmt.Errorf("date %q does not match pattern for %s", dateText, city.Slug)
	}

	dayStr, monthStr := match[1], match[2]
	if city.SwapDayMonth {
		dayStr, monthStr = match[2], match[1]
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day value %q for %s", dayStr, city.Slug)
	}

	month, err := monthNumber(monthStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w for %s", err, city.Slug)
	}

	year := now.In(r.loc).Year()
	if len(match) > 3 {
		if y, err := strconv.Atoi(match[3]); err == nil {
			year = y
		}
	}

	hour, minute := 0, 0
	if len(match) > 5 {
		h, errH := strconv.Atoi(match[4])
		m, errM := strconv.Atoi(match[5])
		if errH == nil && errM == nil {
			hour, minute = h, m
		}
	}

	if hour == 0 && minute == 0 && timeText != "" {
		if timeRe := city.TimePattern(); timeRe != nil {
			if timeMatch := timeRe.FindStringSubmatch(timeText); timeMatch != nil {
				if h, err := strconv.Atoi(timeMatch[1]); err == nil {
					hour = h
				}
				if m, err := strconv.Atoi(timeMatch[2]); err == nil {
					minute = m
				}
			}
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, r.loc), nil
}
