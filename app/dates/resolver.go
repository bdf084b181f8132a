package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/esdeveniments/agenda-comb/app/feed"
)

// Resolved is the interpreted time window of one event.
type Resolved struct {
	Start   time.Time
	End     time.Time
	FullDay bool
}

var isoWithOffsetRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\+\d{2}:\d{2}$`)

var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// Resolver interprets the date fields of normalized items in a single
// wall-clock zone. Feeds publish naive local times, so the zone is
// fixed per deployment rather than taken from the payload.
type Resolver struct {
	loc *time.Location
}

func NewResolver(timezone string) (*Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	return &Resolver{loc: loc}, nil
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve picks the best available date shape on the item. A structured
// dates block wins, then the publication date, then a {from, to} range,
// then a bare date string.
func (r *Resolver) Resolve(item *feed.Item) (*Resolved, error) {
	if item.Dates != nil && item.Dates.StartDate != "" {
		return r.resolveEventDates(item.Dates)
	}

	var start time.Time
	var err error

	switch {
	case item.PubDate != "":
		start, err = r.parseRFC2822(item.PubDate)
	case item.DateFrom != "":
		start, err = r.parseRFC2822(item.DateFrom)
	case item.Date != "":
		start, err = r.parseLoose(item.Date)
	default:
		return nil, fmt.Errorf("item has no usable date: %s", item.Title)
	}

	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}

	end := start.Add(time.Hour)
	if item.DateTo != "" {
		end, err = r.parseRFC2822(item.DateTo)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
	}

	return r.buildResolved(start, end), nil
}

func (r *Resolver) resolveEventDates(dates *feed.EventDates) (*Resolved, error) {
	startTime := dates.StartTime
	if startTime == "" {
		startTime = "00:00:00"
	}

	endDate := dates.EndDate
	if endDate == "" {
		endDate = dates.StartDate
	}

	endTime := dates.EndTime
	if endTime == "" {
		endTime = "23:59:59"
	}

	start, err := r.parseDateTime(dates.StartDate, startTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %s %s: %w", dates.StartDate, startTime, err)
	}

	var end time.Time
	if dates.StartDate == endDate && startTime == endTime {
		end = start.Add(time.Hour)
	} else {
		end, err = r.parseDateTime(endDate, endTime)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %s %s: %w", endDate, endTime, err)
		}
	}

	return r.buildResolved(start, end), nil
}

func (r *Resolver) buildResolved(start, end time.Time) *Resolved {
	if end.Equal(start) {
		end = start.Add(time.Hour)
	}

	return &Resolved{
		Start:   start,
		End:     end,
		FullDay: isStartOfDay(start) && isEndOfDay(end),
	}
}

func (r *Resolver) parseDateTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04:05", date+"T"+clock, r.loc)
}

func (r *Resolver) parseRFC2822(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range rfc2822Layouts {
		if t, err := time.ParseInLocation(layout, value, r.loc); err == nil {
			return t.In(r.loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// parseLoose accepts ISO-ish strings, including the common
// "2006-01-02 15:04:05" variant with a space instead of a T.
func (r *Resolver) parseLoose(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if !isoWithOffsetRe.MatchString(value) {
		value = strings.Replace(value, " ", "T", 1)
	}

	t, err := dateparse.ParseIn(value, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date format %q: %w", value, err)
	}

	return t.In(r.loc), nil
}

func isStartOfDay(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func isEndOfDay(t time.Time) bool {
	return t.Hour() == 23 && t.Minute() == 59 && t.Second() == 59
}
