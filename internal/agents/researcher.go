package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"researcher/internal/domain"
)

const (
	// MaxResearchResults caps the evidence handed to validation.
	MaxResearchResults = 5
	hybridK            = 3
)

// Researcher gathers evidence for the chosen strategy. Source failures are
// logged and recovered locally; they never fail a run.
type Researcher struct {
	web    domain.WebSearcher
	memory domain.MemoryCapability
	log    *zap.Logger
}

func NewResearcher(web domain.WebSearcher, memory domain.MemoryCapability, log *zap.Logger) *Researcher {
	return &Researcher{web: web, memory: memory, log: named(log, "researcher")}
}

// Collect fills st.ResearchResults, memory evidence first. It only returns
// an error when ctx is done.
func (r *Researcher) Collect(ctx context.Context, st *domain.State) error {
	var results []string
	switch st.Strategy {
	case domain.StrategyDirectAnswer:
		st.ResearchResults = []string{}
		st.Log("Research: skipped for direct answer")
		return nil

	case domain.StrategyMemoryRetrieval:
		store, ok := r.memory.Store()
		if !ok {
			st.Log("Research: memory not available, using web search")
			results = r.searchWeb(ctx, st, MaxResearchResults)
			break
		}
		hits, err := store.Search(ctx, st.Query, MaxResearchResults)
		if err != nil {
			r.log.Warn("memory search failed, falling back to web", zap.Error(err))
			st.Log("Research: memory search failed, falling back to web")
			// fallback results are not written back to memory
			results = r.searchWeb(ctx, st, MaxResearchResults)
			break
		}
		if len(hits) == 0 {
			st.Log("Research: no memory results found")
		} else {
			st.Log(fmt.Sprintf("Research: retrieved %d results from memory", len(hits)))
		}
		results = hits

	case domain.StrategyHybrid:
		if store, ok := r.memory.Store(); ok {
			hits, err := store.Search(ctx, st.Query, hybridK)
			if err != nil {
				r.log.Warn("memory search failed", zap.Error(err))
				st.Log("Research: memory search failed")
			} else if len(hits) > 0 {
				st.Log(fmt.Sprintf("Research: retrieved %d results from memory", len(hits)))
				results = append(results, hits...)
			}
		}
		web := r.searchWeb(ctx, st, hybridK)
		r.remember(ctx, st, web)
		results = append(results, web...)

	default:
		web := r.searchWeb(ctx, st, MaxResearchResults)
		r.remember(ctx, st, web)
		results = web
	}

	if len(results) > MaxResearchResults {
		results = results[:MaxResearchResults]
	}
	if results == nil {
		results = []string{}
	}
	st.ResearchResults = results
	return ctx.Err()
}

func (r *Researcher) searchWeb(ctx context.Context, st *domain.State, k int) []string {
	res, err := r.web.Search(ctx, st.Query, k)
	if err != nil {
		r.log.Warn("web search failed", zap.Error(err))
		st.Log("Research: web search failed")
		return nil
	}
	if len(res) == 0 {
		st.Log("Research: no web results found")
		return nil
	}
	st.Log(fmt.Sprintf("Research: collected %d web results", len(res)))
	return res
}

// remember saves web evidence for later runs. Failures are only logged.
func (r *Researcher) remember(ctx context.Context, st *domain.State, web []string) {
	if len(web) == 0 {
		return
	}
	store, ok := r.memory.Store()
	if !ok {
		return
	}
	if err := store.Save(ctx, web, st.Query); err != nil {
		r.log.Warn("saving evidence to memory failed", zap.Error(err))
		st.Log("Research: could not save results to memory")
		return
	}
	st.Log(fmt.Sprintf("Research: saved %d results to memory", len(web)))
}
