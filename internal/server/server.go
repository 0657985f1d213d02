// internal/server/server.go
package server

import (
	"log"
	"net/http"

	"minifeed/internal/feed"
	"minifeed/internal/storage"
	"minifeed/internal/store"
	"minifeed/internal/translate"
)

const settingTranslateLanguage = "translate_language"

// Server exposes the ingestion engine as a JSON API. It is the boundary the
// UI collaborator talks to; there is no presentation layer here.
type Server struct {
	logger     *log.Logger
	store      *store.Store
	feeds      *feed.Service
	translator *translate.Service
	db         *storage.DB
}

func NewServer(logger *log.Logger, st *store.Store, feeds *feed.Service, translator *translate.Service, db *storage.DB) *Server {
	return &Server{
		logger:     logger,
		store:      st,
		feeds:      feeds,
		translator: translator,
		db:         db,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/feeds", s.handleFeeds)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/entries/read", s.handleEntryRead)
	mux.HandleFunc("/api/entries/star", s.handleEntryStar)
	mux.HandleFunc("/api/entries/translation", s.handleTranslation)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}
