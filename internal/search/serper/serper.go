package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"researcher/internal/domain"
	"researcher/internal/search"
)

// Searcher queries Google results through serper.dev.
type Searcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

var _ domain.WebSearcher = (*Searcher)(nil)

func New(cfg Config) (*Searcher, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("serper: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev/search"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Searcher{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	body, err := json.Marshal(map[string]any{"q": query, "num": maxResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: http %d", resp.StatusCode)
	}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decode: %w", err)
	}
	snippets := make([]string, 0, len(raw.Organic))
	for _, r := range raw.Organic {
		snippets = append(snippets, r.Snippet)
	}
	return search.Snippets(snippets, maxResults), nil
}
