// internal/feed/service.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWorkers bounds how many feeds are resolved at once.
	DefaultWorkers = 10

	defaultItemTimeout = 30 * time.Second
)

// Store is the persisted Feed/Entry collection the scheduler commits into.
// Implementations must serialize mutations internally; commits from
// concurrent workers target distinct feed ids.
type Store interface {
	Feeds() []Feed
	FeedByID(id string) (Feed, bool)
	HasFeedURL(url string) bool
	EntriesByFeed(feedID string) []Entry
	AddFeed(ctx context.Context, f Feed, entries []Entry) error
	ReplaceFeedEntries(ctx context.Context, f Feed, entries []Entry) error
}

// Service is the ingestion scheduler: it validates and dedups candidate
// URLs, drives the survivors through the resolver on a bounded worker pool,
// and commits successful results immediately so partial batch progress
// survives cancellation.
type Service struct {
	store       Store
	resolver    *Resolver
	logger      *log.Logger
	workers     int
	itemTimeout time.Duration

	mu          sync.Mutex
	cancelBatch context.CancelFunc
	cancelAdd   context.CancelFunc
}

type Option func(*Service)

// WithWorkers overrides the worker pool width.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithResolver overrides the default resolver.
func WithResolver(r *Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithItemTimeout overrides the per-item deadline.
func WithItemTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.itemTimeout = d
		}
	}
}

func NewService(store Store, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      logger,
		workers:     DefaultWorkers,
		itemTimeout: defaultItemTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = NewResolver(logger, nil)
	}
	return s
}

// Ingest adds every reachable feed from urls. Syntactically invalid URLs
// count as failed without any network activity; URLs matching an existing
// subscription count as skipped. Each committed feed is visible immediately,
// even if the batch is later cancelled. A cancelled batch returns
// (nil, context.Canceled) and already-committed feeds stay committed.
func (s *Service) Ingest(ctx context.Context, urls []string, progress ProgressFunc) (*IngestResult, error) {
	batchCtx, cancel := s.beginBatch(ctx)
	defer cancel()

	result := &IngestResult{}
	seen := make(map[string]bool, len(urls))
	var candidates []string
	for _, raw := range urls {
		normalized, err := ValidateURL(raw)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", NormalizeURL(raw), err))
			continue
		}
		if s.store.HasFeedURL(normalized) || seen[normalized] {
			result.Skipped++
			continue
		}
		seen[normalized] = true
		candidates = append(candidates, normalized)
	}

	s.logger.Printf("Ingesting %d candidate URLs (%d failed validation, %d skipped)",
		len(candidates), result.Failed, result.Skipped)

	finished := s.runPool(batchCtx, len(candidates), func(ctx context.Context, i int) error {
		return s.ingestOne(ctx, candidates[i])
	}, func(i int, err error) {
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", candidates[i], err))
			return
		}
		result.Success++
	}, progress)
	if !finished {
		return nil, context.Canceled
	}

	s.logger.Printf("Ingestion finished: %d success, %d failed, %d skipped",
		result.Success, result.Failed, result.Skipped)
	return result, nil
}

// AddFeed is the single-URL degenerate case of Ingest: same pre-filtering,
// same timeout and cancellation race, same commit semantics. Starting a new
// add cancels one still in flight. Returns true when the feed committed.
func (s *Service) AddFeed(ctx context.Context, rawURL string) (bool, error) {
	normalized, err := ValidateURL(rawURL)
	if err != nil {
		return false, err
	}
	if s.store.HasFeedURL(normalized) {
		return false, ErrDuplicate
	}

	addCtx, cancel := s.beginAdd(ctx)
	defer cancel()

	if err := s.ingestOne(addCtx, normalized); err != nil {
		return false, err
	}
	return true, nil
}

// RefreshFeed re-resolves one subscribed feed and merges the result into
// its stored entries, preserving read/starred flags.
func (s *Service) RefreshFeed(ctx context.Context, feedID string) error {
	f, ok := s.store.FeedByID(feedID)
	if !ok {
		return fmt.Errorf("unknown feed %s", feedID)
	}
	return s.refreshOne(ctx, f)
}

// RefreshAll refreshes every subscribed feed on the same bounded pool as
// Ingest, reporting (feeds completed, total feeds) progress.
func (s *Service) RefreshAll(ctx context.Context, progress ProgressFunc) (*IngestResult, error) {
	batchCtx, cancel := s.beginBatch(ctx)
	defer cancel()

	feeds := s.store.Feeds()
	result := &IngestResult{}

	finished := s.runPool(batchCtx, len(feeds), func(ctx context.Context, i int) error {
		return s.refreshOne(ctx, feeds[i])
	}, func(i int, err error) {
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", feeds[i].URL, err))
			return
		}
		result.Success++
	}, progress)
	if !finished {
		return nil, context.Canceled
	}
	return result, nil
}

// Cancel stops the outstanding batch, if any. Committed results stay.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBatch != nil {
		s.cancelBatch()
		s.cancelBatch = nil
	}
	if s.cancelAdd != nil {
		s.cancelAdd()
		s.cancelAdd = nil
	}
}

// runPool drives work over n items with at most the configured number of
// workers. Items are claimed in input order from a shared index; the
// completed count and progress callback advance under the batch lock, so
// progress values never regress or skip. Returns false if the batch context
// was cancelled before all items completed.
func (s *Service) runPool(ctx context.Context, n int, work func(context.Context, int) error, collect func(i int, err error), progress ProgressFunc) bool {
	if n == 0 {
		return ctx.Err() == nil
	}

	var (
		mu        sync.Mutex
		next      int
		completed int
	)
	width := s.workers
	if width > n {
		width = n
	}

	var wg sync.WaitGroup
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if ctx.Err() != nil || next >= n {
					mu.Unlock()
					return
				}
				idx := next
				next++
				mu.Unlock()

				err := work(ctx, idx)
				if errors.Is(err, context.Canceled) {
					// Abandoned mid-flight: no result entry, no progress.
					return
				}

				mu.Lock()
				collect(idx, err)
				completed++
				if progress != nil {
					progress(completed, n)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return ctx.Err() == nil
}

// ingestOne resolves a single pre-validated URL and commits it as a new
// feed. The resolver races against the per-item deadline and the batch
// cancellation signal via itemCtx; cancellation observed before the commit
// step discards the result.
func (s *Service) ingestOne(ctx context.Context, feedURL string) error {
	itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	parsed, err := s.resolver.Resolve(itemCtx, feedURL)
	if err != nil {
		return s.classify(ctx, itemCtx, err)
	}

	if ctx.Err() != nil {
		return context.Canceled
	}

	now := time.Now()
	f := Feed{
		ID:            uuid.NewString(),
		URL:           feedURL,
		Title:         parsed.Title,
		Description:   parsed.Description,
		LastRefreshed: now,
	}
	entries := NewEntries(f.ID, parsed.Entries)

	if err := s.store.AddFeed(ctx, f, entries); err != nil {
		return fmt.Errorf("error saving feed: %w", err)
	}
	s.logger.Printf("Committed feed %s (%q, %d entries)", feedURL, f.Title, len(entries))
	return nil
}

func (s *Service) refreshOne(ctx context.Context, f Feed) error {
	itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	parsed, err := s.resolver.Resolve(itemCtx, f.URL)
	if err != nil {
		return s.classify(ctx, itemCtx, err)
	}

	merged := Merge(f.ID, parsed.Entries, s.store.EntriesByFeed(f.ID))

	f.Title = parsed.Title
	f.Description = parsed.Description
	f.LastRefreshed = time.Now()

	if ctx.Err() != nil {
		return context.Canceled
	}
	if err := s.store.ReplaceFeedEntries(ctx, f, merged); err != nil {
		return fmt.Errorf("error saving refreshed feed: %w", err)
	}
	return nil
}

// classify maps a resolver failure onto the error taxonomy: batch
// cancellation wins over everything, then the per-item deadline, then
// whatever diagnostic the resolver carried.
func (s *Service) classify(batchCtx, itemCtx context.Context, err error) error {
	if batchCtx.Err() != nil {
		return context.Canceled
	}
	if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, s.itemTimeout)
	}
	if errors.Is(err, ErrEmptyFeed) {
		return ErrEmptyFeed
	}
	return err
}

func (s *Service) beginBatch(ctx context.Context) (context.Context, context.CancelFunc) {
	batchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelBatch != nil {
		s.cancelBatch()
	}
	s.cancelBatch = cancel
	s.mu.Unlock()
	return batchCtx, cancel
}

func (s *Service) beginAdd(ctx context.Context) (context.Context, context.CancelFunc) {
	addCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelAdd != nil {
		s.cancelAdd()
	}
	s.cancelAdd = cancel
	s.mu.Unlock()
	return addCtx, cancel
}
