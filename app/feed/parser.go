package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run turns a fetched payload into normalized items. XML payloads go
// through gofeed, JSON payloads are expected to be a plain array of
// items.
func (p *Parser) Run(kind Kind, data []byte) ([]Item, error) {
	switch kind {
	case KindJSON:
		return p.parseJSON(data)
	case KindRSS, KindAtom, KindUnknown:
		return p.parseXML(data)
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unsupported feed kind: %s", kind)}
	}
}

func (p *Parser) parseXML(data []byte) ([]Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Msg: "failed to parse feed", Err: err}
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		normalized := p.normalizeItem(item)
		p.finalizeItem(&normalized)
		items = append(items, normalized)
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:  item.GUID,
		Title: item.Title,
		Link:  item.Link,
		// Some sources publish the venue inside content:encoded
		// instead of a location element, hence the extra field.
		FullDescription: cmp.Or(item.Description, item.Custom["content"]),
		LocationExtra:   item.Content,
		Location:        item.Custom["location"],
		PubDate:         item.Published,
		Date:            item.Custom["date"],
	}

	if item.Image != nil {
		normalized.ImageURL = item.Image.URL
	}

	normalized.Dates = p.extractEventDates(item)

	return normalized
}

// extractEventDates pulls the events:dates extension block published
// by some municipal agenda feeds.
func (p *Parser) extractEventDates(item *gofeed.Item) *EventDates {
	exts, ok := item.Extensions["events"]
	if !ok {
		return nil
	}

	datesExts, ok := exts["dates"]
	if !ok || len(datesExts) == 0 {
		return nil
	}

	dateExts, ok := datesExts[0].Children["date"]
	if !ok || len(dateExts) == 0 {
		return nil
	}

	date := dateExts[0]
	dates := &EventDates{
		StartDate: extensionValue(date, "date_start"),
		StartTime: extensionValue(date, "time_start"),
		EndDate:   extensionValue(date, "date_end"),
		EndTime:   extensionValue(date, "time_end"),
	}

	if dates.StartDate == "" {
		return nil
	}

	return dates
}

func extensionValue(parent ext.Extension, name string) string {
	children, ok := parent.Children[name]
	if !ok || len(children) == 0 {
		return ""
	}
	return children[0].Value
}

type jsonItemDate struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type jsonItem struct {
	GUID        string          `json:"guid"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	Image       string          `json:"image"`
	Location    string          `json:"location"`
	PubDate     string          `json:"pubDate"`
	Date        json.RawMessage `json:"date"`
}

func (p *Parser) parseJSON(data []byte) ([]Item, error) {
	var rawItems []jsonItem
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, &ParseError{Msg: "failed to parse JSON feed", Err: err}
	}

	items := make([]Item, 0, len(rawItems))
	for _, raw := range rawItems {
		normalized := Item{
			GUID:            raw.GUID,
			Title:           raw.Title,
			Link:            cmp.Or(raw.Link, raw.URL),
			FullDescription: cmp.Or(raw.Description, raw.Content),
			ImageURL:        raw.Image,
			Location:        raw.Location,
			PubDate:         raw.PubDate,
		}

		p.decodeJSONDate(raw.Date, &normalized)
		p.finalizeItem(&normalized)
		items = append(items, normalized)
	}

	return items, nil
}

// decodeJSONDate accepts either a plain date string or a {from, to}
// range object.
func (p *Parser) decodeJSONDate(raw json.RawMessage, item *Item) {
	if len(raw) == 0 {
		return
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		item.Date = plain
		return
	}

	var dateRange jsonItemDate
	if err := json.Unmarshal(raw, &dateRange); err == nil {
		item.DateFrom = dateRange.From
		item.DateTo = dateRange.To
	}
}

// finalizeItem computes the content hash and backfills the GUID for
// sources that do not publish one.
func (p *Parser) finalizeItem(item *Item) {
	item.ContentHash = p.generateContentHash(*item)
	if item.GUID == "" {
		item.GUID = item.ContentHash
	}
}

// generateContentHash derives a stable identity from the fields that
// define an occurrence. The date participates so a rescheduled event
// is treated as new.
func (p *Parser) generateContentHash(item Item) string {
	date := item.Date
	switch {
	case item.Dates != nil:
		date = item.Dates.StartDate
	case item.DateFrom != "":
		date = item.DateFrom
	}

	content := fmt.Sprintf("%s|%s|%s|%s",
		item.Title,
		item.Link,
		cmp.Or(item.Location, item.LocationExtra),
		date)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
