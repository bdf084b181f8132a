package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestFetcherRun(t *testing.T) {
	rssBody := `<?xml version="1.0"?><rss version="2.0"><channel><title>Agenda</title></channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("Expected User-Agent 'test-agent', got: %s", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssBody))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	kind, data, err := fetcher.Run(context.Background(), server.URL)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if kind != KindRSS {
		t.Errorf("Expected RSS kind, got: %s", kind)
	}
	if string(data) != rssBody {
		t.Errorf("Expected body to round-trip, got: %s", data)
	}
}

func TestFetcherRunHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	_, _, err := fetcher.Run(context.Background(), server.URL)

	if err == nil {
		t.Fatal("Expected an error for a 502 response")
	}

	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected an HTTPError, got: %T", err)
	}
	if httpErr.Status != http.StatusBadGateway {
		t.Errorf("Expected status 502, got: %d", httpErr.Status)
	}
}

func TestFetcherRunInvalidURL(t *testing.T) {
	fetcher := NewFetcher(&http.Client{}, "test-agent")

	_, _, err := fetcher.Run(context.Background(), "")
	if err == nil {
		t.Fatal("Expected an error for an empty URL")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected a ValidationError, got: %T", err)
	}
}

func TestFetcherRunLatinFallback(t *testing.T) {
	// Feed labeled UTF-8 but actually ISO-8859-1, as some town halls serve it
	encoded, err := charmap.ISO8859_1.NewEncoder().String("Festa de Sant Vicenç")
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` + encoded + `</title></channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	_, data, err := fetcher.Run(context.Background(), server.URL)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(data), "Sant Vicenç") {
		t.Errorf("Expected ISO-8859-1 payload to be re-decoded, got: %s", data)
	}
}

func TestFetcherRunJSONDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Concert"}]`))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	kind, _, err := fetcher.Run(context.Background(), server.URL)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if kind != KindJSON {
		t.Errorf("Expected JSON kind from array payload, got: %s", kind)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        string
		want        Kind
	}{
		{"rss", "application/xml", `<?xml version="1.0"?><rss version="2.0"></rss>`, KindRSS},
		{"atom", "application/xml", `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`, KindAtom},
		{"json content type", "application/json; charset=utf-8", `{"items": []}`, KindJSON},
		{"json array body", "text/plain", `  [{"title": "x"}]`, KindJSON},
		{"bom prefixed rss", "text/xml", "\xef\xbb\xbf<rss version=\"2.0\"></rss>", KindRSS},
		{"unknown", "text/html", `<html></html>`, KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectKind(tc.contentType, []byte(tc.data)); got != tc.want {
				t.Errorf("Expected %s, got: %s", tc.want, got)
			}
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.cat/rss", "https://example.cat/rss"},
		{"example.cat/rss", "https://example.cat/rss"},
		{"https, example.cat/rss", "https://example.cat/rss"},
		{"https:////example.cat/rss", "https://example.cat/rss"},
		{"https://example.cat/rss feed", "https://example.cat/rssfeed"},
		{"", ""},
		{"https://", ""},
	}

	for _, tc := range tests {
		if got := SanitizeURL(tc.raw); got != tc.want {
			t.Errorf("SanitizeURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
