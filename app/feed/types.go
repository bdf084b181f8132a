package feed

import "fmt"

// Kind classifies a fetched feed document. The fetcher determines it
// once and the rest of the pipeline pattern-matches on it instead of
// re-inspecting the payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindRSS
	KindAtom
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindRSS:
		return "rss"
	case KindAtom:
		return "atom"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// EventDates carries the structured events:dates extension block some
// municipal feeds publish. Times default to the start and end of day
// when omitted.
type EventDates struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time"`
}

// Item is the canonical shape of one feed entry after normalization.
// Date fields are passed through verbatim; interpreting them is the
// resolver's job.
type Item struct {
	GUID            string      `json:"guid"`
	Title           string      `json:"title"`
	Link            string      `json:"link"`
	FullDescription string      `json:"full_description"`
	ImageURL        string      `json:"image_url,omitempty"`
	Location        string      `json:"location,omitempty"`
	LocationExtra   string      `json:"location_extra,omitempty"`
	PubDate         string      `json:"pub_date,omitempty"`
	Date            string      `json:"date,omitempty"`
	DateFrom        string      `json:"date_from,omitempty"`
	DateTo          string      `json:"date_to,omitempty"`
	Dates           *EventDates `json:"dates,omitempty"`

	ContentHash string `json:"content_hash"`
}

// ValidationError reports missing or malformed request input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// HTTPError reports a non-2xx response from an upstream feed server.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d fetching %s", e.Status, e.URL)
}

// ParseError reports a payload with no recognizable feed structure.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
