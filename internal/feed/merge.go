// internal/feed/merge.go
package feed

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// Merge reconciles freshly parsed entries against the entries previously
// stored for the same feed. Matching is by exact link: a matched entry takes
// the new title/content/date/author/categories but carries forward the
// existing Read and Starred flags under a fresh id. Entries no longer present
// upstream are dropped, so refreshing an unchanged feed is idempotent.
func Merge(feedID string, parsed []ParsedEntry, existing []Entry) []Entry {
	byLink := make(map[string]Entry, len(existing))
	for _, e := range existing {
		if e.Link != "" {
			byLink[e.Link] = e
		}
	}

	merged := make([]Entry, 0, len(parsed))
	for i, pe := range parsed {
		entry := newEntry(feedID, pe, i)
		if old, ok := byLink[pe.Link]; ok && pe.Link != "" {
			entry.Read = old.Read
			entry.Starred = old.Starred
		}
		merged = append(merged, entry)
	}
	return merged
}

// NewEntries converts parsed entries into Entry records for a brand-new
// feed, all unread and unstarred.
func NewEntries(feedID string, parsed []ParsedEntry) []Entry {
	entries := make([]Entry, 0, len(parsed))
	for i, pe := range parsed {
		entries = append(entries, newEntry(feedID, pe, i))
	}
	return entries
}

func newEntry(feedID string, pe ParsedEntry, index int) Entry {
	return Entry{
		ID:         newEntryID(feedID, pe.GUID, index),
		FeedID:     feedID,
		Title:      pe.Title,
		Link:       pe.Link,
		Content:    pe.Content,
		Snippet:    pe.Snippet,
		Published:  pe.Published,
		Author:     pe.Author,
		Categories: pe.Categories,
	}
}

// newEntryID derives an entry id from the owning feed id, the source guid
// (or the entry's index when the source provides none) and the creation
// time. Two entries collide only when the same feed re-ingests the same
// guid within the same nanosecond tick.
func newEntryID(feedID, guid string, index int) string {
	key := guid
	if key == "" {
		key = strconv.Itoa(index)
	}
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck

	prefix := feedID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s-%08x-%d", prefix, h.Sum32(), time.Now().UnixNano())
}
