package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultTimeout bounds a single feed fetch end to end.
const DefaultTimeout = 25 * time.Second

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    DefaultTimeout,
	}
}

// Run fetches url and returns the decoded payload together with its
// detected kind. Municipal feeds occasionally serve ISO-8859-1 bodies
// labeled as UTF-8, so the payload is re-decoded when the bytes do not
// hold together as UTF-8.
func (f *Fetcher) Run(ctx context.Context, url string) (Kind, []byte, error) {
	url = SanitizeURL(url)
	if url == "" {
		return KindUnknown, nil, &ValidationError{Msg: "invalid feed URL"}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return KindUnknown, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return KindUnknown, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return KindUnknown, nil, &HTTPError{Status: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return KindUnknown, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	data = decodeBody(data)

	return detectKind(resp.Header.Get("Content-Type"), data), data, nil
}

// decodeBody falls back to ISO-8859-1 when the payload is not valid
// UTF-8 or already carries replacement characters from a bad upstream
// transcode.
func decodeBody(data []byte) []byte {
	if utf8.Valid(data) && !bytes.ContainsRune(data, utf8.RuneError) {
		return data
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}

	return decoded
}

func detectKind(contentType string, data []byte) Kind {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")

	if strings.Contains(contentType, "application/json") || bytes.HasPrefix(trimmed, []byte("[")) {
		return KindJSON
	}

	if bytes.Contains(trimmed, []byte("<feed")) {
		return KindAtom
	}

	if bytes.Contains(trimmed, []byte("<rss")) || bytes.Contains(trimmed, []byte("<rdf")) {
		return KindRSS
	}

	return KindUnknown
}
