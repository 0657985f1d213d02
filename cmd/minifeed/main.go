package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"minifeed/internal/config"
	"minifeed/internal/feed"
	"minifeed/internal/server"
	"minifeed/internal/storage"
	"minifeed/internal/store"
	"minifeed/internal/translate"
)

var (
	// Version will be set during build
	Version = "dev"

	// Command line flags
	port    = flag.Int("port", 0, "Port to run the server on (default: 8080 or MINIFEED_PORT)")
	dbPath  = flag.String("db", "", "Path to database file (default: data/minifeed.db or MINIFEED_DB_PATH)")
	workers = flag.Int("workers", 0, "Ingestion worker pool width (default: 10 or MINIFEED_WORKERS)")
	version = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("minifeed version %s\n", Version)
		return
	}

	logger := log.New(os.Stdout, "minifeed: ", log.LstdFlags|log.Lshortfile)

	ctx := context.Background()
	cfg, err := config.GetConfig(ctx)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Override with command line flags if provided
	if *port > 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	logger.Printf("Starting minifeed v%s", Version)
	logger.Printf("Port: %d", cfg.Port)
	logger.Printf("Database: %s", cfg.DBPath)
	logger.Printf("Workers: %d", cfg.Workers)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := storage.NewDB(cfg.DBPath, storage.DefaultConfig(), logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	st := store.New(db, logger)
	if err := st.Load(ctx); err != nil {
		logger.Fatalf("Failed to load persisted state: %v", err)
	}
	logger.Printf("Loaded %d feeds, %d entries", len(st.Feeds()), len(st.Entries()))

	var relays []string
	if len(cfg.Relays) > 0 {
		relays = cfg.Relays
	}
	resolver := feed.NewResolver(logger, relays)
	feedService := feed.NewService(st, logger,
		feed.WithResolver(resolver),
		feed.WithWorkers(cfg.Workers),
	)

	translator := translate.NewService(translate.Config{
		BaseURL: cfg.TranslateBaseURL,
		APIKey:  cfg.TranslateAPIKey,
		Model:   cfg.TranslateModel,
		Timeout: cfg.TranslateTimeout,
	}, db, logger)

	srv := server.NewServer(logger, st, feedService, translator, db)

	logger.Printf("Starting server on port %d", cfg.Port)
	if err := http.ListenAndServe(cfg.GetAddress(), srv.Routes()); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
