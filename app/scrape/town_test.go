package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/esdeveniments/agenda-comb/app/dates"
	"github.com/esdeveniments/agenda-comb/app/sources"
)

const agendaPage = `<html><body>
	<div class="agenda-item">
		<h3 class="agenda-title">Concert de festa major</h3>
		<a class="agenda-link" href="/agenda/concert">Més informació</a>
		<span class="agenda-date">Dissabte 12 de setembre</span>
		<span class="agenda-time">19:30</span>
		<span class="agenda-place">Plaça Major</span>
		<img class="agenda-img" src="/imatges/cartell.jpg">
	</div>
	<div class="agenda-item">
		<h3 class="agenda-title">Fira del llibre</h3>
		<a class="agenda-link" href="/agenda/fira">Més informació</a>
		<span class="agenda-date">Diumenge 13 de setembre</span>
	</div>
	<div class="agenda-item">
		<h3 class="agenda-title"></h3>
	</div>
</body></html>`

const detailPage = `<html><body>
	<span class="agenda-time">11:00</span>
	<span class="agenda-place">Biblioteca Municipal</span>
	<img class="agenda-img" src="/imatges/fira.jpg">
</body></html>`

func testResolver(t *testing.T) *dates.Resolver {
	t.Helper()
	r, err := dates.NewResolver("Europe/Madrid")
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}
	return r
}

func TestTownScraperRun(t *testing.T) {
	detailRequests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/agenda", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(agendaPage))
	})
	mux.HandleFunc("/agenda/fira", func(w http.ResponseWriter, r *http.Request) {
		detailRequests++
		w.Write([]byte(detailPage))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	city := &sources.ScraperCity{
		Slug:             "granollers",
		DefaultLocation:  "Granollers",
		Domain:           server.URL,
		URL:              server.URL + "/agenda",
		ListSelector:     ".agenda-item",
		TitleSelector:    ".agenda-title",
		URLSelector:      ".agenda-link",
		DateSelector:     ".agenda-date",
		TimeSelector:     ".agenda-time",
		LocationSelector: ".agenda-place",
		ImageSelector:    ".agenda-img",
		DateRegex:        `(\d{1,2})\s+de\s+([a-zçA-ZÇ]+)`,
		TimeRegex:        `(\d{1,2}):(\d{2})`,
	}
	if err := city.Compile(); err != nil {
		t.Fatalf("Failed to compile city patterns: %v", err)
	}

	scraper := NewTownScraper(server.Client(), "test-agent", testResolver(t))
	events, err := scraper.Run(context.Background(), city)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events (untitled dropped), got: %d", len(events))
	}

	concert := events[0]
	if concert.Title != "Concert de festa major" {
		t.Errorf("Expected concert title, got: %s", concert.Title)
	}
	if concert.URL != server.URL+"/agenda/concert" {
		t.Errorf("Expected domain-prefixed URL, got: %s", concert.URL)
	}
	if concert.Location != "Plaça Major" {
		t.Errorf("Expected scraped location, got: %s", concert.Location)
	}
	if concert.Date.Month() != time.September || concert.Date.Day() != 12 {
		t.Errorf("Expected 12 September, got: %v", concert.Date)
	}
	if concert.Date.Hour() != 19 || concert.Date.Minute() != 30 {
		t.Errorf("Expected 19:30, got: %v", concert.Date)
	}
	if !strings.Contains(concert.Image, "/imatges/cartell.jpg") {
		t.Errorf("Expected image URL, got: %s", concert.Image)
	}
	if !strings.Contains(concert.Description, `<div class="hidden">`) {
		t.Error("Expected hidden image div appended to the description")
	}
	if concert.ID == "" {
		t.Error("Expected a content hash ID")
	}

	fira := events[1]
	if detailRequests == 0 {
		t.Error("Expected the detail page to be visited for the incomplete entry")
	}
	if fira.Location != "Biblioteca Municipal" {
		t.Errorf("Expected location from detail page, got: %s", fira.Location)
	}
	if fira.Date.Hour() != 11 {
		t.Errorf("Expected time from detail page, got: %v", fira.Date)
	}

	if concert.ID == fira.ID {
		t.Error("Expected distinct IDs for distinct events")
	}
}

func TestTownScraperFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	city := &sources.ScraperCity{
		Slug:          "olot",
		Domain:        server.URL,
		URL:           server.URL + "/agenda",
		ListSelector:  ".agenda-item",
		TitleSelector: ".agenda-title",
		DateRegex:     `(\d{1,2})\s+de\s+([a-zçA-ZÇ]+)`,
	}
	if err := city.Compile(); err != nil {
		t.Fatalf("Failed to compile city patterns: %v", err)
	}

	scraper := NewTownScraper(server.Client(), "test-agent", testResolver(t))
	if _, err := scraper.Run(context.Background(), city); err == nil {
		t.Fatal("Expected an error when the agenda page cannot be fetched")
	}
}

func TestFixImageURL(t *testing.T) {
	scraper := NewTownScraper(&http.Client{}, "test-agent", nil)

	city := &sources.ScraperCity{
		Domain:   "https://www.vic.cat",
		URLImage: "/thumbnails/",
	}

	if got := scraper.fixImageURL("/thumbnails/cartell.jpg", city); got != "https://www.vic.cat/cartell.jpg" {
		t.Errorf("Expected thumbnail path replaced and domain prefixed, got: %s", got)
	}
	if got := scraper.fixImageURL("https://www.vic.cat/thumbnails/cartell.jpg", city); got != "https://www.vic.cat/cartell.jpg" {
		t.Errorf("Expected thumbnail path replaced in absolute URL, got: %s", got)
	}

	plain := &sources.ScraperCity{Domain: "https://www.vic.cat"}
	if got := scraper.fixImageURL("/imatges/cartell.jpg", plain); got != "https://www.vic.cat/imatges/cartell.jpg" {
		t.Errorf("Expected domain prefix only, got: %s", got)
	}
	if got := scraper.fixImageURL("", plain); got != "" {
		t.Errorf("Expected empty image to stay empty, got: %s", got)
	}
}
