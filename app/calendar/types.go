package calendar

import (
	"context"
	"time"
)

// Event is one calendar entry ready for publication.
type Event struct {
	GUID        string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	FullDay     bool
}

// Client publishes events to a calendar backend.
type Client interface {
	Insert(ctx context.Context, event *Event) error
}

// Result reports the outcome of publishing one event.
type Result struct {
	GUID        string
	PublishedAt time.Time
	Err         error
}
