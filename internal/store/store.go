// internal/store/store.go
package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"minifeed/internal/feed"
)

// Persister loads and saves whole-collection snapshots. It is responsible
// for durability only; the Store owns the live collections.
type Persister interface {
	Load(ctx context.Context) ([]feed.Feed, []feed.Entry, error)
	Save(ctx context.Context, feeds []feed.Feed, entries []feed.Entry) error
}

// Store holds the live Feed and Entry collections under a single lock and
// snapshots them through the Persister after every committing mutation.
// Workers committing different feeds contend only on this lock, so
// near-simultaneous commits can never interleave a lost update.
type Store struct {
	mu      sync.RWMutex
	feeds   []feed.Feed
	entries []feed.Entry

	persister Persister
	logger    *log.Logger
}

func New(p Persister, logger *log.Logger) *Store {
	return &Store{persister: p, logger: logger}
}

// Load replaces the live collections with the persisted snapshot. Entries
// whose owning feed is missing are discarded, keeping the feed-reference
// invariant on whatever the persister hands back.
func (s *Store) Load(ctx context.Context) error {
	feeds, entries, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("error loading snapshot: %w", err)
	}

	known := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		known[f.ID] = true
	}
	kept := make([]feed.Entry, 0, len(entries))
	for _, e := range entries {
		if !known[e.FeedID] {
			continue
		}
		kept = append(kept, e)
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		s.logger.Printf("Discarded %d orphaned entries on load", dropped)
	}

	s.mu.Lock()
	s.feeds = feeds
	s.entries = kept
	s.mu.Unlock()
	return nil
}

// Feeds returns a copy of the feed list.
func (s *Store) Feeds() []feed.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feed.Feed, len(s.feeds))
	copy(out, s.feeds)
	return out
}

// Entries returns a copy of the entry list in collection order.
func (s *Store) Entries() []feed.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feed.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) FeedByID(id string) (feed.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.feeds {
		if f.ID == id {
			return f, true
		}
	}
	return feed.Feed{}, false
}

// HasFeedURL reports whether a feed with exactly this source URL exists.
func (s *Store) HasFeedURL(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.feeds {
		if f.URL == url {
			return true
		}
	}
	return false
}

func (s *Store) EntriesByFeed(feedID string) []feed.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []feed.Entry
	for _, e := range s.entries {
		if e.FeedID == feedID {
			out = append(out, e)
		}
	}
	return out
}

// AddFeed commits a new feed with its entries. The entries go ahead of all
// other feeds' entries, so the newest-ingested feed leads the collection.
func (s *Store) AddFeed(ctx context.Context, f feed.Feed, entries []feed.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.feeds {
		if existing.URL == f.URL {
			return feed.ErrDuplicate
		}
	}

	s.feeds = append(s.feeds, f)
	s.entries = append(append([]feed.Entry{}, entries...), s.entries...)
	return s.saveLocked(ctx)
}

// ReplaceFeedEntries commits a refresh: the feed record is updated in place
// and its entry set is replaced by the merged set, placed ahead of entries
// belonging to other feeds.
func (s *Store) ReplaceFeedEntries(ctx context.Context, f feed.Feed, entries []feed.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.feeds {
		if s.feeds[i].ID == f.ID {
			s.feeds[i] = f
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown feed %s", f.ID)
	}

	rest := make([]feed.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.FeedID != f.ID {
			rest = append(rest, e)
		}
	}
	s.entries = append(append([]feed.Entry{}, entries...), rest...)
	return s.saveLocked(ctx)
}

// RemoveFeed deletes a feed and cascades to its entries, returning the ids
// of the removed entries so collaborators (the translation cache) can drop
// their keyed state.
func (s *Store) RemoveFeed(ctx context.Context, feedID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.feeds {
		if s.feeds[i].ID == feedID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown feed %s", feedID)
	}
	s.feeds = append(s.feeds[:idx], s.feeds[idx+1:]...)

	var removed []string
	kept := make([]feed.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.FeedID == feedID {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return removed, nil
}

// SetRead flips the read flag on one entry. Only explicit user actions go
// through here; ingestion never does.
func (s *Store) SetRead(ctx context.Context, entryID string, read bool) error {
	return s.setFlag(ctx, entryID, func(e *feed.Entry) { e.Read = read })
}

// SetStarred flips the starred flag on one entry.
func (s *Store) SetStarred(ctx context.Context, entryID string, starred bool) error {
	return s.setFlag(ctx, entryID, func(e *feed.Entry) { e.Starred = starred })
}

func (s *Store) setFlag(ctx context.Context, entryID string, apply func(*feed.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			apply(&s.entries[i])
			return s.saveLocked(ctx)
		}
	}
	return fmt.Errorf("unknown entry %s", entryID)
}

func (s *Store) saveLocked(ctx context.Context) error {
	feeds := make([]feed.Feed, len(s.feeds))
	copy(feeds, s.feeds)
	entries := make([]feed.Entry, len(s.entries))
	copy(entries, s.entries)

	if err := s.persister.Save(ctx, feeds, entries); err != nil {
		return fmt.Errorf("error saving snapshot: %w", err)
	}
	return nil
}
