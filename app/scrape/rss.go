package scrape

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/esdeveniments/agenda-comb/app/cfg"
)

// Generator renders scraped events as an RSS 2.0 document so scraper
// cities can be consumed through the same pipeline as real feeds.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(citySlug, cityLabel string, events []Event) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	title := fmt.Sprintf("Esdeveniments a %s", cityLabel)
	g.writeElement(&buf, "title", title, 4)
	g.writeElement(&buf, "link", g.siteURL(), 4)
	g.writeElement(&buf, "description", title, 4)

	selfLink := fmt.Sprintf("%s/api/scrapeEvents?city=%s", g.siteURL(), citySlug)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeElement(&buf, "lastBuildDate", time.Now().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Agenda-Comb/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", "ca", 4)

	for _, event := range events {
		if event.Title == "" {
			continue
		}
		g.writeItem(&buf, event)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeItem(buf *bytes.Buffer, event Event) {
	buf.WriteString("    <item>\n")

	buf.WriteString(`      <guid isPermaLink="false">`)
	xml.EscapeText(buf, []byte(event.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", event.Title, 6)
	g.writeElement(buf, "link", event.URL, 6)
	g.writeElement(buf, "description", event.Description, 6)
	g.writeElement(buf, "location", event.Location, 6)

	if !event.Date.IsZero() {
		g.writeElement(buf, "pubDate", event.Date.Format(time.RFC1123Z), 6)
	}

	if event.Image != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(event.Image)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) siteURL() string {
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
