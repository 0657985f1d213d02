// internal/feed/resolver.go
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	securitynet "minifeed/internal/security/netutil"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	attemptTimeout = 15 * time.Second
	maxFeedBytes   = 5 << 20
	acceptHeader   = "application/rss+xml, application/xml, text/xml, */*"
	userAgent      = "Minifeed/0.1"
)

// discoverySuffixes are probed, in this priority order, when the URL itself
// does not serve a feed. All probes run concurrently but the winner is the
// first success by list position, so results stay deterministic regardless
// of network jitter.
var discoverySuffixes = []string{
	"/feed",
	"/feed/",
	"/rss",
	"/rss/",
	"/index.xml",
	"/feed.xml",
	"/rss.xml",
	"?format=rss",
	"?format=atom",
	"/atom",
	"/atom.xml",
}

// defaultRelays are fallback relay endpoints tried, in order, when a direct
// fetch fails. Each is a printf template receiving the query-escaped target.
var defaultRelays = []string{
	"https://api.allorigins.win/raw?url=%s",
	"https://corsproxy.io/?url=%s",
}

// Resolver discovers a working feed endpoint for a user-supplied URL.
type Resolver struct {
	client *http.Client
	parser *Parser
	logger *log.Logger
	relays []string
}

func NewResolver(logger *log.Logger, relays []string) *Resolver {
	if relays == nil {
		relays = defaultRelays
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Resolver{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		parser: NewParser(),
		logger: logger,
		relays: relays,
	}
}

// Resolve tries the URL directly, then an HTML-advertised alternate link if
// the URL served a web page, then the fixed suffix list in parallel. The
// first candidate yielding a parseable feed with at least one entry wins.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*ParsedFeed, error) {
	base := NormalizeURL(rawURL)

	parsed, body, lastErr := r.attempt(ctx, base)
	if parsed != nil {
		return parsed, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// A web page may advertise its feed in a <link rel="alternate"> tag.
	if href := discoverFeedLink(body, base); href != "" {
		parsed, _, err := r.attempt(ctx, href)
		if parsed != nil {
			return parsed, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	parsed, probeErr := r.probeSuffixes(ctx, base)
	if parsed != nil {
		return parsed, nil
	}
	if probeErr != nil {
		lastErr = probeErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if lastErr == nil {
		lastErr = errors.New("all candidates failed")
	}
	return nil, fmt.Errorf("%w: %w", ErrNotFound, lastErr)
}

// probeSuffixes issues all suffix attempts concurrently and selects the
// winner by suffix list position, not completion order. Losing attempts are
// cancelled once a winner is known; their results are discarded.
func (r *Resolver) probeSuffixes(ctx context.Context, base string) (*ParsedFeed, error) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(discoverySuffixes)
	type probeResult struct {
		idx    int
		parsed *ParsedFeed
		err    error
	}
	results := make(chan probeResult, n)

	var g errgroup.Group
	for i, suffix := range discoverySuffixes {
		i, candidate := i, base+suffix
		g.Go(func() error {
			parsed, _, err := r.attempt(probeCtx, candidate)
			results <- probeResult{idx: i, parsed: parsed, err: err}
			return nil
		})
	}
	go func() {
		g.Wait() //nolint:errcheck
		close(results)
	}()

	var lastErr error
	done := make([]bool, n)
	feeds := make([]*ParsedFeed, n)
	next := 0
	for received := 0; received < n; received++ {
		select {
		case res := <-results:
			done[res.idx] = true
			feeds[res.idx] = res.parsed
			if res.err != nil {
				lastErr = res.err
			}
			// Advance through the priority prefix as it resolves.
			for next < n && done[next] {
				if feeds[next] != nil {
					return feeds[next], nil
				}
				next++
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// attempt fetches and parses a single candidate URL. The raw body is
// returned even on failure so the caller can inspect an HTML response for
// an advertised feed link.
func (r *Resolver) attempt(ctx context.Context, candidate string) (*ParsedFeed, []byte, error) {
	body, err := r.fetch(ctx, candidate)
	if err != nil {
		return nil, nil, err
	}

	parsed := r.parser.Parse(body)
	if parsed == nil {
		return nil, body, fmt.Errorf("no recognizable feed at %s", candidate)
	}
	if len(parsed.Entries) == 0 {
		return nil, body, fmt.Errorf("%w: %s", ErrEmptyFeed, candidate)
	}
	return parsed, body, nil
}

// fetch retrieves the candidate, trying a direct request first and then
// each relay endpoint in order on network failure or non-success status.
func (r *Resolver) fetch(ctx context.Context, candidate string) ([]byte, error) {
	endpoints := make([]string, 0, len(r.relays)+1)
	endpoints = append(endpoints, candidate)
	for _, relay := range r.relays {
		endpoints = append(endpoints, fmt.Sprintf(relay, url.QueryEscape(candidate)))
	}

	var lastErr error
	for _, endpoint := range endpoints {
		body, err := r.fetchOne(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *Resolver) fetchOne(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	// Block destinations in private/reserved ranges (loopback allowed for
	// local testing).
	if host := req.URL.Hostname(); host != "" && securitynet.HostBlocked(host) {
		return nil, fmt.Errorf("destination resolves to private/reserved address")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, endpoint)
		}
		return nil, fmt.Errorf("error fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected response status %d from %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", endpoint, err)
	}
	return body, nil
}

// discoverFeedLink scans an HTML document for a feed alternate link and
// returns it resolved against base, or "" when none is advertised.
func discoverFeedLink(body []byte, base string) string {
	if len(body) == 0 {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, typ, href string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "rel":
					rel = strings.ToLower(attr.Val)
				case "type":
					typ = strings.ToLower(attr.Val)
				case "href":
					href = attr.Val
				}
			}
			if strings.Contains(rel, "alternate") && isFeedMIMEType(typ) && href != "" {
				if u, err := url.Parse(href); err == nil {
					found = baseURL.ResolveReference(u).String()
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func isFeedMIMEType(typ string) bool {
	switch typ {
	case "application/rss+xml", "application/atom+xml", "application/xml", "text/xml":
		return true
	}
	return false
}
