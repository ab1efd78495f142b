package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"researcher/internal/domain"
	"researcher/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

var _ vectorstore.Storage = (*Storage)(nil)

// errNotFound marks a missing collection.
var errNotFound = errors.New("qdrant: not found")

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "research_assistant"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// pointID maps a content id onto the UUID space Qdrant accepts, so the same
// text always lands on the same point.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return s.ensureCollection(ctx, dimension)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record, vectors [][]float64) error {
	if len(records) != len(vectors) {
		return errors.New("records and vectors length mismatch")
	}
	points := make([]map[string]any, len(records))
	for i := range records {
		points[i] = map[string]any{
			"id":     pointID(records[i].ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"record_id":    records[i].ID,
				"text":         records[i].Text,
				"source_query": records[i].SourceQuery,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return []domain.Match{}, nil
		}
		return nil, err
	}
	results := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		rec := domain.Record{}
		if v, ok := r.Payload["record_id"].(string); ok {
			rec.ID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			rec.Text = v
		}
		if v, ok := r.Payload["source_query"].(string); ok {
			rec.SourceQuery = v
		}
		results = append(results, domain.Match{Record: rec, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Clear drops the collection and recreates it when the vector width is known.
func (s *Storage) Clear(ctx context.Context) error {
	if err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim == 0 {
		return nil
	}
	return s.ensureCollection(ctx, dim)
}

func (s *Storage) Close() error { return nil }

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", errNotFound, method, url)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
