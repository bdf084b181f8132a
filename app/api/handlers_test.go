package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/esdeveniments/agenda-comb/app/cfg"
	"github.com/esdeveniments/agenda-comb/app/feed"
)

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	cfg.Load()
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	setupTestConfig()

	httpClient := &http.Client{}
	handler := NewHandler(nil, nil,
		feed.NewFetcher(httpClient, "test-agent"),
		feed.NewParser(),
		nil, nil, nil, nil)

	return NewServer(handler, "")
}

func TestGetRSSMissingParameter(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/getRss", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if _, ok := body["items"]; !ok {
		t.Error("Expected an empty items array in the error response")
	}
	if !strings.Contains(body["error"].(string), "Invalid input") {
		t.Errorf("Expected validation message, got: %v", body["error"])
	}
}

func TestGetRSSProxiesFeed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Agenda</title>
<item><title>Concert</title><link>https://example.cat/e/1.html extra</link><pubDate>Sat, 12 Sep 2026 10:00:00 +0200</pubDate></item>
</channel></rss>`))
	}))
	defer upstream.Close()

	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/getRss?rssFeed="+upstream.URL, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d, body: %s", w.Code, w.Body.String())
	}

	var body struct {
		Items []feed.Item `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(body.Items))
	}
	if body.Items[0].Title != "Concert" {
		t.Errorf("Expected title 'Concert', got: %s", body.Items[0].Title)
	}
	// Embedded whitespace is stripped by link sanitizing
	if body.Items[0].Link != "https://example.cat/e/1.htmlextra" {
		t.Errorf("Expected sanitized link, got: %s", body.Items[0].Link)
	}
}

func TestGetRSSUpstreamServerError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/getRss?rssFeed="+upstream.URL, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 for upstream 5xx, got: %d", w.Code)
	}
}

func TestGetRSSUpstreamNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/getRss?rssFeed="+upstream.URL, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for upstream 4xx, got: %d", w.Code)
	}
}

func TestGetRSSUnparseablePayload(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed at all"))
	}))
	defer upstream.Close()

	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/getRss?rssFeed="+upstream.URL, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for unparseable payload, got: %d", w.Code)
	}
}

func TestFetchRSSMissingParameters(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/fetchRss", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Region parameter is missing") {
		t.Errorf("Expected region error, got: %s", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/fetchRss?region=osona", nil)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Town parameter is missing") {
		t.Errorf("Expected town error, got: %s", w.Body.String())
	}
}

func TestScrapeEventsMissingCity(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/scrapeEvents", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "City parameter is missing") {
		t.Errorf("Expected city error, got: %s", w.Body.String())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &feed.ValidationError{Msg: "bad input"}, http.StatusBadRequest},
		{"upstream 5xx", &feed.HTTPError{Status: 503, URL: "https://example.cat"}, http.StatusBadGateway},
		{"upstream 4xx", &feed.HTTPError{Status: 404, URL: "https://example.cat"}, http.StatusBadRequest},
		{"parse", &feed.ParseError{Msg: "broken xml"}, http.StatusUnprocessableEntity},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, message := classifyError(tc.err)
			if status != tc.wantStatus {
				t.Errorf("Expected status %d, got: %d", tc.wantStatus, status)
			}
			if message == "" {
				t.Error("Expected a message")
			}
		})
	}
}
