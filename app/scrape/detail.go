package scrape

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/text/encoding/charmap"

	"github.com/esdeveniments/agenda-comb/app/dates"
	"github.com/esdeveniments/agenda-comb/app/feed"
	"github.com/esdeveniments/agenda-comb/app/sources"
)

// maxDescriptionLength caps scraped descriptions before publication.
const maxDescriptionLength = 500

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	imageURLRe   = regexp.MustCompile(`https?://[^"\s]+\.(?:jpg|jpeg|gif|png|JPG)`)
	iframeRe     = regexp.MustCompile(`<iframe[^>]+src="([^"]+)"[^>]*></iframe>`)
	htmlSuffixRe = regexp.MustCompile(`\.html$`)
)

// Detail is the enrichment extracted for one event from its detail
// page and feed payload.
type Detail struct {
	Description string
	Location    string
	Image       string
	Video       string
}

// DetailScraper fills in the fields municipal feeds leave out by
// visiting each event's detail page. It never fails hard: any fetch or
// parse problem degrades to the generated fallback description.
type DetailScraper struct {
	httpClient *http.Client
	userAgent  string
}

func NewDetailScraper(httpClient *http.Client, userAgent string) *DetailScraper {
	return &DetailScraper{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Run resolves the description, location, image and video of item. The
// returned description is already wrapped in the publication markup.
func (s *DetailScraper) Run(ctx context.Context, item *feed.Item, town *sources.Town, window *dates.Resolved) Detail {
	location := cmp.Or(item.Location, item.LocationExtra)

	if item.Link == "" {
		return Detail{
			Description: FallbackDescription(item.Title, window.Start, window.End, location),
			Location:    location,
			Image:       item.ImageURL,
		}
	}

	var doc *goquery.Document
	var rawHTML []byte
	fetched := false
	getDoc := func() *goquery.Document {
		if fetched {
			return doc
		}
		fetched = true

		pageURL := item.Link
		if town.ShouldSanitizeURL() {
			pageURL = SanitizeURL(pageURL)
		}

		data, err := fetchHTML(ctx, s.httpClient, s.userAgent, pageURL, "")
		if err != nil {
			slog.Warn("Failed to fetch detail page", "town", town.Slug, "url", pageURL, "error", err)
			return nil
		}

		rawHTML = data
		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			slog.Warn("Failed to parse detail page", "town", town.Slug, "url", pageURL, "error", err)
			doc = nil
		}
		return doc
	}

	description := ""
	if item.FullDescription != "" && town.GetDescriptionFromRSS {
		description = item.FullDescription
	} else if d := getDoc(); d != nil {
		description = s.extractDescription(d, rawHTML, town, item.Link)
	}

	image := item.ImageURL
	if image == "" {
		if d := getDoc(); d != nil {
			image = s.extractImage(d, town, item.Link)
		}
		if image == "" && !town.RemoveImage {
			image = imageURLRe.FindString(cmp.Or(description, item.FullDescription))
		}
	}

	video := extractVideo(cmp.Or(item.FullDescription, description))

	if location == "" && town.LocationSelector != "" {
		if d := getDoc(); d != nil {
			location = extractLocation(d, town.LocationSelector)
		}
	}

	if description == "" {
		description = FallbackDescription(item.Title, window.Start, window.End, location)
	}

	return Detail{
		Description: FormatDescription(item.Link, description, image, video),
		Location:    location,
		Image:       image,
		Video:       video,
	}
}

func (s *DetailScraper) extractDescription(doc *goquery.Document, rawHTML []byte, town *sources.Town, pageURL string) string {
	var text string

	if town.DescriptionSelector != "" {
		sel := doc.Find(town.DescriptionSelector)
		if sel.Length() > 0 {
			sel.Find("img").Each(func(_ int, img *goquery.Selection) {
				if src, ok := img.Attr("src"); ok && !strings.HasPrefix(src, "http") {
					img.SetAttr("src", absoluteURL(src, pageURL))
				}
			})
			if town.RemoveImage {
				sel.Find("img").Remove()
			}
			text = sel.Text()
		}
	} else if len(rawHTML) > 0 {
		// Sources without a configured selector go through generic
		// article extraction.
		article, err := readability.FromReader(bytes.NewReader(rawHTML), nil)
		if err == nil {
			text = article.TextContent
		}
	}

	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	return truncate(text, maxDescriptionLength)
}

func (s *DetailScraper) extractImage(doc *goquery.Document, town *sources.Town, pageURL string) string {
	if town.ImageSelector == "" {
		return ""
	}

	sel := doc.Find(town.ImageSelector).First()
	if sel.Length() == 0 {
		return ""
	}

	src, ok := sel.Attr("src")
	if !ok || src == "" {
		// Selector may point at a wrapper around the img.
		src, _ = sel.Find("img").First().Attr("src")
	}
	if src == "" {
		return ""
	}

	if !strings.HasPrefix(src, "http") {
		src = absoluteURL(src, pageURL)
	}

	return strings.Replace(src, "http://", "https://", 1)
}

func extractLocation(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector)
	location := strings.TrimSpace(sel.Find("p").First().Text())
	if location == "" {
		location = strings.TrimSpace(sel.First().Text())
	}

	// Long matches usually grabbed a full address block, keep the
	// venue part before the first comma.
	if utf8.RuneCountInString(location) > 100 {
		location = strings.SplitN(location, ",", 2)[0]
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(location, " "))
}

func extractVideo(description string) string {
	match := iframeRe.FindStringSubmatch(description)
	if match == nil {
		return ""
	}
	return match[1]
}

// fetchHTML fetches a page and decodes it to UTF-8. An explicit
// encoding forces the decode, otherwise ISO-8859-1 is the fallback for
// payloads that do not survive a UTF-8 read.
func fetchHTML(ctx context.Context, client *http.Client, userAgent, pageURL, encoding string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return decodeHTML(data, encoding), nil
}

func decodeHTML(data []byte, encoding string) []byte {
	forced := strings.EqualFold(encoding, "iso-8859-1") || strings.EqualFold(encoding, "latin1")
	if !forced && utf8.Valid(data) && !bytes.ContainsRune(data, utf8.RuneError) {
		return data
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}

	return decoded
}

// SanitizeURL strips the trailing ".html" some CMSes add to canonical
// URLs. The stripped form serves the same page with cleaner markup.
func SanitizeURL(pageURL string) string {
	return htmlSuffixRe.ReplaceAllString(pageURL, "")
}

func absoluteURL(src, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}

	ref, err := url.Parse(src)
	if err != nil {
		return src
	}

	return base.ResolveReference(ref).String()
}

func truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}

// FallbackDescription builds the Catalan placeholder used when no
// description could be scraped.
func FallbackDescription(title string, start, end time.Time, location string) string {
	formattedStart, formattedEnd := dates.FormatRange(start, end)
	dateLine := formattedStart
	if formattedEnd != "" {
		dateLine = formattedStart + " - " + formattedEnd
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n📅 %s", title, dateLine)

	if location != "" {
		fmt.Fprintf(&b, "\n\n📍 %s", location)
	}

	if duration := dates.DurationInHours(start, end); duration != "" {
		fmt.Fprintf(&b, "\n\n⏰ Durada: %s", duration)
	}

	b.WriteString("\n\n🔗 Visita el nostre lloc web per a més informació!")

	return b.String()
}

// FormatDescription wraps a description in the markup the site front
// end expects. Image, video and detail URL travel in hidden spans.
func FormatDescription(pageURL, description, image, video string) string {
	var b strings.Builder

	b.WriteString("<div>")
	b.WriteString(description)
	b.WriteString("</div>")

	if image != "" {
		fmt.Fprintf(&b, `<span class="hidden" data-image="%s"></span>`, html.EscapeString(image))
	}

	if video != "" {
		fmt.Fprintf(&b, `<span class="hidden" data-video="%s"></span>`, html.EscapeString(video))
	}

	fmt.Fprintf(&b, `<span id="more-info" class="hidden" data-url="%s"></span>`, html.EscapeString(pageURL))

	return b.String()
}
