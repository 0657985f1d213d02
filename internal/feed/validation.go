// internal/feed/validation.go
package feed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL = errors.New("invalid feed URL")
	ErrDuplicate  = errors.New("feed already subscribed")
	ErrTimeout    = errors.New("feed fetch timeout")
	ErrNotFound   = errors.New("no feed found at URL")
	ErrEmptyFeed  = errors.New("feed has no entries")
)

// NormalizeURL trims surrounding whitespace and a single trailing slash.
// Suffix probing in the resolver depends on the base having no trailing
// slash, and duplicate detection compares normalized forms.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	return strings.TrimSuffix(trimmed, "/")
}

// ValidateURL checks a candidate URL syntactically without touching the
// network. It returns the normalized form on success.
func ValidateURL(raw string) (string, error) {
	normalized := NormalizeURL(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: must use HTTP or HTTPS", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return normalized, nil
}
