package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"researcher/internal/domain"
	"researcher/internal/search"
)

// Searcher queries the Brave web search API.
// https://api.search.brave.com/app/documentation/web-search
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
		return nil, errors.New("brave: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.search.brave.com/res/v1/web/search"
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
	u := fmt.Sprintf("%s?q=%s&count=%d", s.baseURL, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: http %d", resp.StatusCode)
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave: decode: %w", err)
	}
	snippets := make([]string, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		snippets = append(snippets, stripTags(r.Description))
	}
	return search.Snippets(snippets, maxResults), nil
}

// stripTags removes the <strong> highlighting Brave puts around query terms.
func stripTags(s string) string {
	return strings.NewReplacer("<strong>", "", "</strong>", "").Replace(s)
}
