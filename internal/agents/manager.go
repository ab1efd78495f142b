package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/llm"
)

// memoryProbeK is how many memory hits the Manager looks for before
// deciding that stored knowledge is relevant.
const memoryProbeK = 3

// Manager classifies a query into a research strategy.
type Manager struct {
	llm    llm.Completer
	memory domain.MemoryCapability
	log    *zap.Logger
}

func NewManager(c llm.Completer, memory domain.MemoryCapability, log *zap.Logger) *Manager {
	return &Manager{llm: c, memory: memory, log: named(log, "manager")}
}

// Classify sets st.Strategy. Relevant memory forces hybrid without asking the
// model; otherwise the model's label is used, defaulting to web_research, and
// memory strategies are downgraded when memory is unavailable.
func (m *Manager) Classify(ctx context.Context, st *domain.State) error {
	if m.hasMemoryHits(ctx, st.Query) {
		st.Strategy = domain.StrategyHybrid
		st.Log(fmt.Sprintf("Manager: relevant memory found, strategy %s", st.Strategy))
		m.log.Info("strategy decided", zap.String("strategy", string(st.Strategy)), zap.Bool("memory_hit", true))
		return nil
	}

	label, err := m.llm.Complete(ctx, classifyPrompt(st.Query))
	if err != nil {
		return fmt.Errorf("%w: classify query: %w", domain.ErrProvider, err)
	}
	strategy, ok := domain.ParseStrategy(label)
	if !ok {
		m.log.Warn("unknown strategy label, using web_research", zap.String("label", label))
		strategy = domain.StrategyWebResearch
	}
	if strategy.NeedsMemory() && !m.memory.Available() {
		m.log.Info("memory unavailable, downgrading strategy", zap.String("requested", string(strategy)))
		strategy = domain.StrategyWebResearch
	}
	st.Strategy = strategy
	st.Log(fmt.Sprintf("Manager: strategy %s", strategy))
	m.log.Info("strategy decided", zap.String("strategy", string(strategy)), zap.Bool("memory_hit", false))
	return nil
}

func (m *Manager) hasMemoryHits(ctx context.Context, query string) bool {
	store, ok := m.memory.Store()
	if !ok {
		return false
	}
	hits, err := store.Search(ctx, query, memoryProbeK)
	if err != nil {
		m.log.Warn("memory search failed, classifying with the model", zap.Error(err))
		return false
	}
	return len(hits) > 0
}

func named(log *zap.Logger, module string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("module", module))
}
