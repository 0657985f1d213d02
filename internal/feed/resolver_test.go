// internal/feed/resolver_test.go
package feed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "test: ", log.LstdFlags)
}

// testResolver builds a resolver with no relay fallbacks so tests only ever
// talk to their own mock servers.
func testResolver() *Resolver {
	return NewResolver(testLogger(), []string{})
}

func feedDocument(title string, items int) string {
	doc := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` + title + `</title><description>test</description>`
	for i := 0; i < items; i++ {
		doc += fmt.Sprintf(`<item><title>Entry %d</title><link>http://example.com/%s/%d</link><guid>http://example.com/%s/%d</guid><description>Body %d</description></item>`,
			i, title, i, title, i, i)
	}
	return doc + `</channel></rss>`
}

func serveFeed(title string, items int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedDocument(title, items))
	}
}

func TestResolveDirect(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		serveFeed("Direct", 2)(w, r)
	}))
	defer server.Close()

	parsed, err := testResolver().Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Direct", parsed.Title)
	assert.Len(t, parsed.Entries, 2)
	// The direct path never probes suffixes.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolveTrimsWhitespaceAndSlash(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.URL.RawQuery == "" {
			serveFeed("Trimmed", 1)(w, r)
			return
		}
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	parsed, err := testResolver().Resolve(context.Background(), "  "+server.URL+"/  ")
	require.NoError(t, err)
	assert.Equal(t, "Trimmed", parsed.Title)
}

func TestResolveSuffixProbing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", serveFeed("Suffixed", 3))
	server := httptest.NewServer(mux)
	defer server.Close()

	parsed, err := testResolver().Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Suffixed", parsed.Title)
	assert.Len(t, parsed.Entries, 3)
}

func TestResolvePriorityOrderNotCompletionOrder(t *testing.T) {
	// /feed is first in the suffix list but slow; /rss answers immediately.
	// The winner must still be /feed.
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		serveFeed("Priority Winner", 1)(w, r)
	})
	mux.HandleFunc("/rss", serveFeed("Fast Loser", 1))
	server := httptest.NewServer(mux)
	defer server.Close()

	parsed, err := testResolver().Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Priority Winner", parsed.Title)
}

func TestResolveHTMLDiscovery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/rss+xml" href="/custom/feed/path">
			</head><body>a blog</body></html>`)
	})
	mux.HandleFunc("/custom/feed/path", serveFeed("Discovered", 2))
	server := httptest.NewServer(mux)
	defer server.Close()

	parsed, err := testResolver().Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Discovered", parsed.Title)
}

func TestResolveRelayFallback(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer origin.Close()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if _, err := url.Parse(target); err != nil || target == "" {
			http.Error(w, "bad target", http.StatusBadRequest)
			return
		}
		serveFeed("Relayed", 1)(w, r)
	}))
	defer relay.Close()

	r := NewResolver(testLogger(), []string{relay.URL + "/?url=%s"})
	parsed, err := r.Resolve(context.Background(), origin.URL)
	require.NoError(t, err)
	assert.Equal(t, "Relayed", parsed.Title)
}

func TestResolveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testResolver().Resolve(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveEmptyFeedDiagnostic(t *testing.T) {
	server := httptest.NewServer(serveFeed("Empty", 0))
	defer server.Close()

	_, err := testResolver().Resolve(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestResolveCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		serveFeed("Slow", 1)(w, r)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := testResolver().Resolve(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverFeedLink(t *testing.T) {
	html := []byte(`<html><head>
		<link rel="stylesheet" href="/style.css">
		<link rel="alternate" type="application/atom+xml" href="feed.xml">
	</head></html>`)

	got := discoverFeedLink(html, "http://example.com/blog")
	assert.Equal(t, "http://example.com/feed.xml", got)

	assert.Empty(t, discoverFeedLink(nil, "http://example.com"))
	assert.Empty(t, discoverFeedLink([]byte("plain text"), "http://example.com"))
}
