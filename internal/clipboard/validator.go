// Package clipboard extracts a downloadable URL from clipboard text, used
// by `surge get --clipboard` when no URL argument is given.
package clipboard

import (
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

const maxCandidateLen = 2048

var allowedSchemes = map[string]bool{"http": true, "https": true}

// Extract validates text as a single downloadable URL and returns it in
// canonical form, or "" if text is not a usable http(s) URL.
func Extract(text string) string {
	text = strings.TrimSpace(text)

	if text == "" || len(text) > maxCandidateLen || strings.ContainsAny(text, "\n\r") {
		return ""
	}
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return ""
	}

	parsed, err := url.Parse(text)
	if err != nil || parsed.Host == "" || !allowedSchemes[parsed.Scheme] {
		return ""
	}

	return parsed.String()
}

// ReadURL reads the system clipboard and returns a valid download URL, or
// "" if the clipboard is empty, unreadable, or holds something else.
func ReadURL() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", err
	}
	return Extract(text), nil
}
