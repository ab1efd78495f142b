package domain

import "strings"

// Strategy selects the evidence-gathering path of a run.
type Strategy string

const (
	StrategyDirectAnswer    Strategy = "direct_answer"
	StrategyWebResearch     Strategy = "web_research"
	StrategyMemoryRetrieval Strategy = "memory_retrieval"
	StrategyHybrid          Strategy = "hybrid"
)

// Strategies lists every valid strategy label.
var Strategies = []Strategy{
	StrategyDirectAnswer,
	StrategyWebResearch,
	StrategyMemoryRetrieval,
	StrategyHybrid,
}

// ParseStrategy normalizes a label and reports whether it names a strategy.
func ParseStrategy(label string) (Strategy, bool) {
	s := Strategy(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range Strategies {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// NeedsMemory reports whether the strategy reads from semantic memory.
func (s Strategy) NeedsMemory() bool {
	return s == StrategyMemoryRetrieval || s == StrategyHybrid
}

// State is threaded through every pipeline step of a single run.
// It is owned by one run and must not be shared between runs.
type State struct {
	Query            string   `json:"query"`
	Strategy         Strategy `json:"strategy"`
	ResearchResults  []string `json:"research_results"`
	ValidatedResults []string `json:"validated_results"`
	FinalAnswer      string   `json:"final_answer"`
	Logs             []string `json:"logs"`
}

// NewState creates the state for a fresh query.
func NewState(query string) *State {
	return &State{
		Query:            query,
		ResearchResults:  []string{},
		ValidatedResults: []string{},
		Logs:             []string{},
	}
}

// Log appends an entry to the audit trail.
func (s *State) Log(entry string) {
	s.Logs = append(s.Logs, entry)
}
