package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researcher/internal/agents"
	"researcher/internal/domain"
	"researcher/internal/embedding/hashing"
	"researcher/internal/memory"
	"researcher/internal/metrics"
	vmemory "researcher/internal/vectorstore/memory"
)

// echoWeb returns results that name the query they were searched for.
type echoWeb struct {
	mu    sync.Mutex
	calls int
}

func (w *echoWeb) Search(_ context.Context, query string, max int) ([]string, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	out := make([]string, 0, max)
	for i := 0; i < max && i < 6; i++ {
		out = append(out, fmt.Sprintf("%s: finding %d", query, i))
	}
	return out, nil
}

func TestConcurrentRunsShareCollaborators(t *testing.T) {
	model := &scriptedLLM{label: "web_research", facts: "- a\n- b", answer: "done", tokens: []string{"do", "ne"}}
	web := &echoWeb{}
	store := memory.NewStore(hashing.NewEmbedder(64), vmemory.NewStorage(), memory.Options{})
	mem := domain.MemoryAvailable(store)
	p := NewPipeline(Agents{
		Manager:    agents.NewManager(model, mem, nil),
		Research:   agents.NewResearcher(web, mem, nil),
		Validation: agents.NewValidator(model, nil),
		Summary:    agents.NewSummarizer(model, nil),
	}, metrics.New(), nil)

	const runs = 16
	states := make([]*domain.State, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := fmt.Sprintf("question number %d", i)
			if i%2 == 0 {
				states[i], errs[i] = p.Run(context.Background(), query)
				return
			}
			states[i], errs[i] = p.Stream(context.Background(), query, func(Event) error { return nil })
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i], "run %d", i)
		st := states[i]
		require.NotNil(t, st)
		assert.Equal(t, fmt.Sprintf("question number %d", i), st.Query)
		assert.LessOrEqual(t, len(st.ResearchResults), 5)
		assert.NotEmpty(t, st.ResearchResults)
		assert.Equal(t, "done", st.FinalAnswer)
		own := 0
		for _, r := range st.ResearchResults {
			if strings.HasPrefix(r, st.Query+":") {
				own++
			}
		}
		assert.Positive(t, own, "run %d has no web evidence of its own", i)
	}

	saved, err := store.Search(context.Background(), "question number 3", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, saved)
	assert.GreaterOrEqual(t, web.calls, runs)
}
