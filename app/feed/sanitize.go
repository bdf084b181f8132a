package feed

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	leadingProtocolCommaRe = regexp.MustCompile(`^(https?),\s*`)
	doubleSlashRe          = regexp.MustCompile(`(https?://)/+`)
	spacesRe               = regexp.MustCompile(`\s+`)
)

// SanitizeURL repairs the malformed feed URLs that show up in shared
// configuration: stray "https," prefixes, missing schemes, duplicated
// slashes and embedded whitespace. Returns empty when the result still
// does not parse.
func SanitizeURL(raw string) string {
	sanitized := leadingProtocolCommaRe.ReplaceAllString(raw, "")

	if !strings.HasPrefix(sanitized, "http://") && !strings.HasPrefix(sanitized, "https://") {
		sanitized = "https://" + sanitized
	}

	sanitized = doubleSlashRe.ReplaceAllString(sanitized, "$1")
	sanitized = spacesRe.ReplaceAllString(sanitized, "")

	parsed, err := url.ParseRequestURI(sanitized)
	if err != nil || parsed.Host == "" {
		return ""
	}

	return sanitized
}
