package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/llm"
)

// Validator condenses raw evidence into a few one-sentence facts.
type Validator struct {
	llm llm.Completer
	log *zap.Logger
}

func NewValidator(c llm.Completer, log *zap.Logger) *Validator {
	return &Validator{llm: c, log: named(log, "validator")}
}

func (v *Validator) Validate(ctx context.Context, st *domain.State) error {
	if len(st.ResearchResults) == 0 {
		st.ValidatedResults = []string{}
		st.Log("Validation: no results to validate")
		return nil
	}
	out, err := v.llm.Complete(ctx, validatePrompt(st.ResearchResults))
	if err != nil {
		return fmt.Errorf("%w: validate evidence: %w", domain.ErrProvider, err)
	}
	st.ValidatedResults = ParseFacts(out)
	st.Log(fmt.Sprintf("Validation: kept %d facts", len(st.ValidatedResults)))
	v.log.Debug("evidence validated", zap.Int("evidence", len(st.ResearchResults)), zap.Int("facts", len(st.ValidatedResults)))
	return nil
}

// ParseFacts turns a model response into one fact per non-blank line.
// Lines are trimmed; bullet markers are kept as written.
func ParseFacts(text string) []string {
	facts := []string{}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			facts = append(facts, line)
		}
	}
	return facts
}
