package scrape

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/esdeveniments/agenda-comb/app/dates"
	"github.com/esdeveniments/agenda-comb/app/sources"
)

const (
	fetchRetries    = 3
	fetchRetryDelay = time.Second
)

// Event is one agenda entry scraped from a city website.
type Event struct {
	ID          string
	URL         string
	Title       string
	Location    string
	Description string
	Image       string
	Date        time.Time
}

// TownScraper turns a city agenda page into a list of events. Cities
// covered here have no machine-readable feed at all, so this is the
// bridge that makes them look like any other source.
type TownScraper struct {
	httpClient *http.Client
	userAgent  string
	resolver   *dates.Resolver
}

func NewTownScraper(httpClient *http.Client, userAgent string, resolver *dates.Resolver) *TownScraper {
	return &TownScraper{
		httpClient: httpClient,
		userAgent:  userAgent,
		resolver:   resolver,
	}
}

// Run scrapes the agenda page of city and returns its events. Detail
// pages are only visited for entries missing fields on the list page.
func (s *TownScraper) Run(ctx context.Context, city *sources.ScraperCity) ([]Event, error) {
	html, err := s.fetchWithRetries(ctx, city.URL, city.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agenda for %s: %w", city.Slug, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse agenda for %s: %w", city.Slug, err)
	}

	var events []Event
	doc.Find(city.ListSelector).Each(func(_ int, entry *goquery.Selection) {
		event, ok := s.extractEvent(ctx, entry, city)
		if ok {
			events = append(events, event)
		}
	})

	slog.Info("Agenda scraped", "city", city.Slug, "events", len(events))

	return events, nil
}

func (s *TownScraper) extractEvent(ctx context.Context, entry *goquery.Selection, city *sources.ScraperCity) (Event, bool) {
	title := strings.TrimSpace(entry.Find(city.TitleSelector).Text())
	href, _ := entry.Find(city.URLSelector).Attr("href")

	date := selectionText(entry, city.DateSelector)
	timeText := selectionText(entry, city.TimeSelector)
	location := selectionText(entry, city.LocationSelector)
	description := selectionText(entry, city.DescriptionSelector)
	image, _ := entry.Find(city.ImageSelector).Attr("src")

	if title == "" {
		return Event{}, false
	}

	eventURL := href
	if href != "" && !strings.Contains(href, city.Domain) {
		eventURL = city.Domain + href
	}

	if href != "" && s.missingFields(city, date, timeText, location, description, image) {
		date, timeText, location, description, image = s.exhaustiveSearch(ctx, eventURL, city, date, timeText, location, description, image)
	}

	if location == "" {
		location = city.DefaultLocation
	}
	if description == "" {
		description = title
	}

	hash := sha256.Sum256([]byte(title + href + location + date))

	var eventDate time.Time
	if date != "" {
		parsed, err := s.resolver.ParseScraped(date, timeText, city, time.Now())
		if err != nil {
			slog.Warn("Failed to parse scraped date", "city", city.Slug, "date", date, "error", err)
		} else {
			eventDate = parsed
		}
	}

	image = s.fixImageURL(image, city)
	if image != "" {
		description += ` <div class="hidden">` + image + `</div>`
	}

	return Event{
		ID:          hex.EncodeToString(hash[:]),
		URL:         eventURL,
		Title:       title,
		Location:    location,
		Description: description,
		Image:       image,
		Date:        eventDate,
	}, true
}

func (s *TownScraper) missingFields(city *sources.ScraperCity, date, timeText, location, description, image string) bool {
	return (date == "" && city.DateSelector != "") ||
		(timeText == "" && city.TimeSelector != "") ||
		(location == "" && city.LocationSelector != "") ||
		(description == "" && city.DescriptionSelector != "") ||
		(image == "" && city.ImageSelector != "")
}

// exhaustiveSearch visits the event's detail page to fill fields the
// list page did not carry. Existing values win.
func (s *TownScraper) exhaustiveSearch(ctx context.Context, eventURL string, city *sources.ScraperCity, date, timeText, location, description, image string) (string, string, string, string, string) {
	html, err := s.fetchWithRetries(ctx, eventURL, city.Encoding)
	if err != nil {
		slog.Warn("Failed to fetch event detail page", "city", city.Slug, "url", eventURL, "error", err)
		return date, timeText, location, description, image
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		slog.Warn("Failed to parse event detail page", "city", city.Slug, "url", eventURL, "error", err)
		return date, timeText, location, description, image
	}

	if date == "" && city.DateSelector != "" {
		date = strings.TrimSpace(doc.Find(city.DateSelector).Text())
	}
	if timeText == "" && city.TimeSelector != "" {
		timeText = strings.TrimSpace(doc.Find(city.TimeSelector).Text())
	}
	if location == "" && city.LocationSelector != "" {
		location = strings.TrimSpace(doc.Find(city.LocationSelector).Text())
	}
	if description == "" && city.DescriptionSelector != "" {
		description = strings.TrimSpace(doc.Find(city.DescriptionSelector).Text())
	}
	if image == "" && city.ImageSelector != "" {
		image, _ = doc.Find(city.ImageSelector).Attr("src")
	}

	return date, timeText, location, description, image
}

func (s *TownScraper) fixImageURL(image string, city *sources.ScraperCity) string {
	if image == "" {
		return ""
	}

	fixed := image
	if city.URLImage != "" {
		fixed = strings.Replace(image, city.URLImage, "/", 1)
	}
	if strings.Contains(image, city.Domain) {
		return fixed
	}
	return city.Domain + fixed
}

func (s *TownScraper) fetchWithRetries(ctx context.Context, pageURL, encoding string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
		}

		data, err := s.fetchPage(ctx, pageURL, encoding)
		if err == nil {
			return data, nil
		}

		lastErr = err
		slog.Warn("Failed to fetch page, retrying", "url", pageURL, "attempts_left", fetchRetries-attempt-1, "error", err)
	}

	return nil, lastErr
}

func (s *TownScraper) fetchPage(ctx context.Context, pageURL, encoding string) ([]byte, error) {
	return fetchHTML(ctx, s.httpClient, s.userAgent, pageURL, encoding)
}

func selectionText(entry *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(entry.Find(selector).Text(), " "))
}
