// Package duckduckgo scrapes the DuckDuckGo lite HTML page. It needs no API key.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"researcher/internal/domain"
	"researcher/internal/search"
)

const defaultEndpoint = "https://lite.duckduckgo.com/lite/"

// limiter enforces 1 query per second across every Searcher in the process.
var limiter = rate.NewLimiter(rate.Every(time.Second), 1)

type Searcher struct {
	endpoint   string
	client     *http.Client
	maxBackoff time.Duration
	limiter    *rate.Limiter
}

type Config struct {
	// Endpoint overrides the lite page URL; used by tests.
	Endpoint string
	Timeout  time.Duration
}

var _ domain.WebSearcher = (*Searcher)(nil)

func New(cfg Config) *Searcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Searcher{
		endpoint:   cfg.Endpoint,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxBackoff: 30 * time.Second,
		limiter:    limiter,
	}
}

// Search returns the result snippets of the lite page, best match first.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("q", query)

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("duckduckgo: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		if delay > s.maxBackoff {
			return nil, errors.New("duckduckgo: rate limited")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: http %d", resp.StatusCode)
	}
	return parseSnippets(io.LimitReader(resp.Body, 2<<20), maxResults)
}

// parseSnippets collects the text of every result-snippet cell in page order.
func parseSnippets(page io.Reader, max int) ([]string, error) {
	doc, err := html.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse page: %w", err)
	}
	var raw []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" && hasClass(n, "result-snippet") {
			raw = append(raw, strings.Join(strings.Fields(textContent(n)), " "))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return search.Snippets(raw, max), nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
