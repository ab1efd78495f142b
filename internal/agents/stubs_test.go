package agents

import (
	"context"
	"errors"
	"strings"

	"researcher/internal/llm"
)

var errStub = errors.New("stub failure")

// stubLLM answers every prompt with reply, or fails with err.
type stubLLM struct {
	reply   string
	err     error
	tokens  []string
	calls   int
	prompts []string
}

func (s *stubLLM) Complete(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubLLM) CompleteStream(_ context.Context, prompt string, _ ...llm.Option) (llm.TokenStream, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return &sliceStream{tokens: s.tokens}, nil
}

type sliceStream struct {
	tokens []string
	i      int
}

func (s *sliceStream) Next() bool {
	if s.i >= len(s.tokens) {
		return false
	}
	s.i++
	return true
}
func (s *sliceStream) Token() string { return s.tokens[s.i-1] }
func (s *sliceStream) Err() error    { return nil }
func (s *sliceStream) Close() error  { return nil }

type webCall struct {
	query string
	max   int
}

type stubWeb struct {
	results []string
	err     error
	calls   []webCall
}

func (s *stubWeb) Search(_ context.Context, query string, max int) ([]string, error) {
	s.calls = append(s.calls, webCall{query, max})
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > max {
		return s.results[:max], nil
	}
	return s.results, nil
}

type stubMemory struct {
	hits        []string
	searchErr   error
	saveErr     error
	searchCalls []int
	saved       [][]string
}

func (s *stubMemory) Search(_ context.Context, _ string, k int) ([]string, error) {
	s.searchCalls = append(s.searchCalls, k)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *stubMemory) Save(_ context.Context, texts []string, _ string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, texts)
	return nil
}

func (s *stubMemory) Clear(context.Context) error { return nil }

func logsContain(logs []string, sub string) bool {
	for _, l := range logs {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}
