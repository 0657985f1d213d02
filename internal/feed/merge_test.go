// internal/feed/merge_test.go
package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePreservesFlagsByLink(t *testing.T) {
	existing := []Entry{
		{ID: "old-1", FeedID: "feed-1", Link: "http://example.com/a", Title: "Old A", Read: true, Starred: true},
		{ID: "old-2", FeedID: "feed-1", Link: "http://example.com/b", Title: "Old B"},
	}
	parsed := []ParsedEntry{
		{Title: "New A", Link: "http://example.com/a", Content: "new body"},
		{Title: "New B", Link: "http://example.com/b"},
		{Title: "Brand New", Link: "http://example.com/c"},
	}

	merged := Merge("feed-1", parsed, existing)
	require.Len(t, merged, 3)

	a := merged[0]
	assert.Equal(t, "New A", a.Title, "content comes from the new parse")
	assert.Equal(t, "new body", a.Content)
	assert.True(t, a.Read)
	assert.True(t, a.Starred)
	assert.NotEqual(t, "old-1", a.ID, "matched entries get a fresh id")

	b := merged[1]
	assert.False(t, b.Read)
	assert.False(t, b.Starred)

	c := merged[2]
	assert.Equal(t, "Brand New", c.Title)
	assert.False(t, c.Read)
	assert.False(t, c.Starred)
}

func TestMergeDropsEntriesAbsentUpstream(t *testing.T) {
	existing := []Entry{
		{ID: "old-1", FeedID: "feed-1", Link: "http://example.com/gone", Starred: true},
	}
	parsed := []ParsedEntry{
		{Title: "Only Entry", Link: "http://example.com/here"},
	}

	merged := Merge("feed-1", parsed, existing)
	require.Len(t, merged, 1)
	assert.Equal(t, "http://example.com/here", merged[0].Link)
}

func TestMergeIdempotentOnUnchangedContent(t *testing.T) {
	parsed := []ParsedEntry{
		{Title: "A", Link: "http://example.com/a", Content: "body a", GUID: "a"},
		{Title: "B", Link: "http://example.com/b", Content: "body b", GUID: "b"},
	}

	first := Merge("feed-1", parsed, nil)
	first[0].Read = true

	second := Merge("feed-1", parsed, first)
	require.Len(t, second, len(first))
	for i := range second {
		assert.Equal(t, first[i].Link, second[i].Link)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Read, second[i].Read)
		assert.Equal(t, first[i].Starred, second[i].Starred)
	}
}

func TestMergeEmptyLinkNeverMatches(t *testing.T) {
	existing := []Entry{
		{ID: "old-1", FeedID: "feed-1", Link: "", Read: true},
	}
	parsed := []ParsedEntry{
		{Title: "No Link", Link: ""},
	}

	merged := Merge("feed-1", parsed, existing)
	require.Len(t, merged, 1)
	assert.False(t, merged[0].Read, "entries without a link cannot carry flags forward")
}

// Entry ids mix the feed id, the source guid (or index) and the creation
// time in nanoseconds. Collisions therefore require the same feed to
// re-ingest the same guid within a single nanosecond tick, which the id
// scheme accepts as out of scope.
func TestEntryIDScheme(t *testing.T) {
	a := newEntryID("0f5afa2a-aaaa-bbbb-cccc-000000000000", "guid-1", 0)
	b := newEntryID("0f5afa2a-aaaa-bbbb-cccc-000000000000", "guid-1", 0)
	assert.NotEqual(t, a, b, "successive generations differ by creation time")
	assert.Contains(t, a, "0f5afa2a-")

	// Guid-less entries fall back to their index.
	c := newEntryID("feed", "", 0)
	d := newEntryID("feed", "", 1)
	assert.NotEqual(t, c[:13], d[:13], "different indexes hash differently")

	entries := NewEntries("feed-1", []ParsedEntry{
		{Title: "A", Published: timePtr(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))},
		{Title: "B"},
	})
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, "feed-1", entries[0].FeedID)
}

func timePtr(t time.Time) *time.Time { return &t }
