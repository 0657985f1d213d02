// internal/storage/snapshot.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"minifeed/internal/feed"
)

// Load reads the persisted feed and entry collections. Rows that fail to
// scan or lack an id are discarded with a log line rather than failing the
// whole load.
func (db *DB) Load(ctx context.Context) ([]feed.Feed, []feed.Entry, error) {
	feeds, err := db.loadFeeds(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries, err := db.loadEntries(ctx)
	if err != nil {
		return nil, nil, err
	}
	return feeds, entries, nil
}

func (db *DB) loadFeeds(ctx context.Context) ([]feed.Feed, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, url, title, description, last_refreshed FROM feeds")
	if err != nil {
		return nil, fmt.Errorf("error querying feeds: %w", err)
	}
	defer rows.Close()

	var feeds []feed.Feed
	for rows.Next() {
		var (
			f             feed.Feed
			description   sql.NullString
			lastRefreshed sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.URL, &f.Title, &description, &lastRefreshed); err != nil {
			db.logger.Printf("Discarding malformed feed row: %v", err)
			continue
		}
		if f.ID == "" || f.URL == "" {
			db.logger.Printf("Discarding feed row with missing id or url")
			continue
		}
		f.Description = description.String
		if lastRefreshed.Valid {
			f.LastRefreshed = lastRefreshed.Time
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func (db *DB) loadEntries(ctx context.Context) ([]feed.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, feed_id, title, link, content, snippet, published, author, categories, is_read, is_starred
		FROM entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying entries: %w", err)
	}
	defer rows.Close()

	var entries []feed.Entry
	for rows.Next() {
		var (
			e          feed.Entry
			title      sql.NullString
			link       sql.NullString
			content    sql.NullString
			snippet    sql.NullString
			published  sql.NullTime
			author     sql.NullString
			categories sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.FeedID, &title, &link, &content, &snippet,
			&published, &author, &categories, &e.Read, &e.Starred); err != nil {
			db.logger.Printf("Discarding malformed entry row: %v", err)
			continue
		}
		if e.ID == "" || e.FeedID == "" {
			db.logger.Printf("Discarding entry row with missing id or feed id")
			continue
		}
		e.Title = title.String
		e.Link = link.String
		e.Content = content.String
		e.Snippet = snippet.String
		e.Author = author.String
		if published.Valid {
			t := published.Time
			e.Published = &t
		}
		if categories.Valid && categories.String != "" {
			// Malformed category JSON loses the categories, not the entry.
			_ = json.Unmarshal([]byte(categories.String), &e.Categories)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the persisted snapshot with the given collections in one
// transaction. Cached translations for entries that no longer exist are
// dropped in the same transaction.
func (db *DB) Save(ctx context.Context, feeds []feed.Feed, entries []feed.Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("error clearing entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM feeds"); err != nil {
		return fmt.Errorf("error clearing feeds: %w", err)
	}

	feedStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feeds (id, url, title, description, last_refreshed)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing feed insert: %w", err)
	}
	defer feedStmt.Close()

	for _, f := range feeds {
		var lastRefreshed interface{}
		if !f.LastRefreshed.IsZero() {
			lastRefreshed = f.LastRefreshed.UTC()
		}
		if _, err := feedStmt.ExecContext(ctx, f.ID, f.URL, f.Title, f.Description, lastRefreshed); err != nil {
			return fmt.Errorf("error inserting feed %s: %w", f.URL, err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, feed_id, position, title, link, content, snippet, published, author, categories, is_read, is_starred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing entry insert: %w", err)
	}
	defer entryStmt.Close()

	for i, e := range entries {
		var published interface{}
		if e.Published != nil {
			published = e.Published.UTC()
		}
		var categories interface{}
		if len(e.Categories) > 0 {
			encoded, err := json.Marshal(e.Categories)
			if err == nil {
				categories = string(encoded)
			}
		}
		if _, err := entryStmt.ExecContext(ctx, e.ID, e.FeedID, i, e.Title, e.Link,
			e.Content, e.Snippet, published, e.Author, categories, e.Read, e.Starred); err != nil {
			return fmt.Errorf("error inserting entry %s: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM translations WHERE entry_id NOT IN (SELECT id FROM entries)"); err != nil {
		return fmt.Errorf("error pruning translations: %w", err)
	}

	return tx.Commit()
}

// Translation is a cached per-entry translation.
type Translation struct {
	EntryID   string
	Language  string
	Title     string
	Snippet   string
	CreatedAt time.Time
}

// GetTranslation returns the cached translation for an entry and language,
// or false when absent.
func (db *DB) GetTranslation(ctx context.Context, entryID, language string) (Translation, bool, error) {
	var t Translation
	err := db.QueryRowContext(ctx, `
		SELECT entry_id, language, title, snippet, created_at
		FROM translations WHERE entry_id = ? AND language = ?`,
		entryID, language,
	).Scan(&t.EntryID, &t.Language, &t.Title, &t.Snippet, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return Translation{}, false, nil
	}
	if err != nil {
		return Translation{}, false, fmt.Errorf("error getting translation: %w", err)
	}
	return t, true, nil
}

// SaveTranslation caches a translation, replacing any prior one for the
// same entry and language.
func (db *DB) SaveTranslation(ctx context.Context, t Translation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO translations (entry_id, language, title, snippet, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(entry_id, language) DO UPDATE
		SET title = excluded.title, snippet = excluded.snippet, created_at = CURRENT_TIMESTAMP`,
		t.EntryID, t.Language, t.Title, t.Snippet,
	)
	if err != nil {
		return fmt.Errorf("error saving translation: %w", err)
	}
	return nil
}

// DeleteTranslations drops cached translations for the given entry ids.
func (db *DB) DeleteTranslations(ctx context.Context, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM translations WHERE entry_id = ?")
	if err != nil {
		return fmt.Errorf("error preparing translation delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range entryIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("error deleting translations for %s: %w", id, err)
		}
	}
	return tx.Commit()
}
