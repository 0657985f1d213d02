// internal/feed/types.go
package feed

import (
	"time"
)

// Feed is a subscribed feed. The ID is assigned once at creation and never
// recomputed from the URL; the URL itself is immutable after creation.
type Feed struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	LastRefreshed time.Time `json:"lastRefreshed"`
}

// Entry is a single article belonging to a feed. Read and Starred are user
// state: ingestion and refresh only ever carry them forward, never reset them.
type Entry struct {
	ID         string     `json:"id"`
	FeedID     string     `json:"feedId"`
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	Content    string     `json:"content,omitempty"`
	Snippet    string     `json:"snippet,omitempty"`
	Published  *time.Time `json:"published,omitempty"`
	Author     string     `json:"author,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Read       bool       `json:"isRead"`
	Starred    bool       `json:"isStarred"`
}

// ParsedFeed is the canonical form extracted from a raw feed document,
// before it is committed as a Feed with Entries.
type ParsedFeed struct {
	Title       string
	Description string
	Entries     []ParsedEntry
}

// ParsedEntry is one item of a parsed document. GUID is whatever identifier
// the source provided and may be empty.
type ParsedEntry struct {
	Title      string
	Link       string
	Content    string
	Snippet    string
	Published  *time.Time
	Author     string
	Categories []string
	GUID       string
}

// IngestResult aggregates the outcome of one batch. It is reported once and
// not persisted.
type IngestResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// ProgressFunc is invoked after each claimed item of a batch completes,
// with the number completed so far and the fixed batch total.
type ProgressFunc func(completed, total int)
