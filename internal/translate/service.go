// internal/translate/service.go
// Translation of entry titles and snippets through an OpenAI-compatible API,
// cached per entry id and language. Ingestion never invalidates the cache;
// feed removal does.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"minifeed/internal/feed"
	"minifeed/internal/storage"
)

const (
	defaultTimeout = 30 * time.Second
	maxRespBytes   = 1 << 20
)

var ErrNotConfigured = errors.New("translation API is not configured")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Service performs bounded-timeout translation calls and caches results in
// the translations table.
type Service struct {
	cfg    Config
	client *http.Client
	db     *storage.DB
	logger *log.Logger
}

func NewService(cfg Config, db *storage.DB, logger *log.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		db:     db,
		logger: logger,
	}
}

// Translate returns the entry's title and snippet in the target language,
// serving from cache when possible. A cache miss costs one HTTP request,
// retried briefly on transient upstream failure.
func (s *Service) Translate(ctx context.Context, entry feed.Entry, language string) (storage.Translation, error) {
	if cached, ok, err := s.db.GetTranslation(ctx, entry.ID, language); err != nil {
		return storage.Translation{}, err
	} else if ok {
		return cached, nil
	}

	if s.cfg.APIKey == "" || s.cfg.BaseURL == "" {
		return storage.Translation{}, ErrNotConfigured
	}

	var result storage.Translation
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := s.request(ctx, entry, language)
		if err != nil {
			var transient *transientError
			if errors.As(err, &transient) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return storage.Translation{}, err
	}

	if err := s.db.SaveTranslation(ctx, result); err != nil {
		s.logger.Printf("Error caching translation for entry %s: %v", entry.ID, err)
	}
	return result, nil
}

// Invalidate drops cached translations for the given entries. Called when
// a feed removal cascades to its entries.
func (s *Service) Invalidate(ctx context.Context, entryIDs []string) error {
	return s.db.DeleteTranslations(ctx, entryIDs)
}

type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("transient upstream status %d", e.status)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *Service) request(ctx context.Context, entry feed.Entry, language string) (storage.Translation, error) {
	payload := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"Translate the feed article title and snippet into %s. "+
						`Respond with JSON: {"title": "...", "snippet": "..."}`, language),
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Title: %s\nSnippet: %s", entry.Title, entry.Snippet),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return storage.Translation{}, fmt.Errorf("error encoding request: %w", err)
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return storage.Translation{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return storage.Translation{}, fmt.Errorf("error calling translation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return storage.Translation{}, &transientError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return storage.Translation{}, fmt.Errorf("unexpected translation API status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return storage.Translation{}, fmt.Errorf("error reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return storage.Translation{}, fmt.Errorf("error decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return storage.Translation{}, errors.New("translation API returned no choices")
	}

	var out struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return storage.Translation{}, fmt.Errorf("error decoding translation content: %w", err)
	}

	return storage.Translation{
		EntryID:  entry.ID,
		Language: language,
		Title:    out.Title,
		Snippet:  out.Snippet,
	}, nil
}
