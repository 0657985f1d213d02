// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"minifeed/internal/feed"
	"minifeed/internal/opml"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Error encoding response: %v", err)
	}
}

// handleFeeds lists, adds or removes subscriptions.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.store.Feeds())

	case http.MethodPost:
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		committed, err := s.feeds.AddFeed(r.Context(), req.URL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// Superseded by a newer add; not a failure to report.
				w.WriteHeader(http.StatusNoContent)
				return
			}
			status := http.StatusBadGateway
			if errors.Is(err, feed.ErrInvalidURL) || errors.Is(err, feed.ErrDuplicate) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("Failed to add feed: %v", err), status)
			return
		}
		s.writeJSON(w, map[string]bool{"committed": committed})

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing feed id", http.StatusBadRequest)
			return
		}
		removed, err := s.store.RemoveFeed(r.Context(), id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to remove feed: %v", err), http.StatusNotFound)
			return
		}
		if err := s.translator.Invalidate(r.Context(), removed); err != nil {
			s.logger.Printf("Error invalidating translations for feed %s: %v", id, err)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if feedID := r.URL.Query().Get("feedId"); feedID != "" {
		s.writeJSON(w, s.store.EntriesByFeed(feedID))
		return
	}
	s.writeJSON(w, s.store.Entries())
}

func (s *Server) handleEntryRead(w http.ResponseWriter, r *http.Request) {
	s.handleEntryFlag(w, r, s.store.SetRead)
}

func (s *Server) handleEntryStar(w http.ResponseWriter, r *http.Request) {
	s.handleEntryFlag(w, r, s.store.SetStarred)
}

func (s *Server) handleEntryFlag(w http.ResponseWriter, r *http.Request, set func(context.Context, string, bool) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing entry id", http.StatusBadRequest)
		return
	}
	value := r.URL.Query().Get("value") != "false"
	if err := set(r.Context(), id, value); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update entry: %v", err), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport ingests every xmlUrl of an OPML document as one batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	subs, err := opml.Parse(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid OPML: %v", err), http.StatusBadRequest)
		return
	}
	urls := make([]string, 0, len(subs))
	for _, sub := range subs {
		urls = append(urls, sub.XMLURL)
	}

	result, err := s.feeds.Ingest(r.Context(), urls, func(completed, total int) {
		s.logger.Printf("Import progress: %d/%d", completed, total)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, fmt.Sprintf("Import failed: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	subs := make([]opml.Subscription, 0)
	for _, f := range s.store.Feeds() {
		subs = append(subs, opml.Subscription{Title: f.Title, XMLURL: f.URL})
	}
	w.Header().Set("Content-Type", "text/x-opml")
	w.Header().Set("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	if err := opml.Write(w, "minifeed subscriptions", subs); err != nil {
		s.logger.Printf("Error writing OPML export: %v", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, err := s.feeds.RefreshAll(r.Context(), func(completed, total int) {
		s.logger.Printf("Refresh progress: %d/%d", completed, total)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, fmt.Sprintf("Refresh failed: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleTranslation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing entry id", http.StatusBadRequest)
		return
	}
	language := r.URL.Query().Get("lang")
	if language == "" {
		stored, err := s.db.GetSetting(settingTranslateLanguage)
		if err != nil {
			s.logger.Printf("Error reading translation language setting: %v", err)
		}
		language = stored
	}
	if language == "" {
		http.Error(w, "Missing target language", http.StatusBadRequest)
		return
	}

	var target feed.Entry
	found := false
	for _, e := range s.store.Entries() {
		if e.ID == id {
			target = e
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "Unknown entry", http.StatusNotFound)
		return
	}

	translation, err := s.translator.Translate(r.Context(), target, language)
	if err != nil {
		s.logger.Printf("Translation failed for entry %s: %v", id, err)
		http.Error(w, fmt.Sprintf("Translation failed: %v", err), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, map[string]string{
		"entryId":  translation.EntryID,
		"language": translation.Language,
		"title":    translation.Title,
		"snippet":  translation.Snippet,
	})
}
