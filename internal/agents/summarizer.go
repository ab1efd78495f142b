package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/llm"
)

// Summarizer writes the final answer from the validated facts.
type Summarizer struct {
	llm llm.Completer
	log *zap.Logger
}

func NewSummarizer(c llm.Completer, log *zap.Logger) *Summarizer {
	return &Summarizer{llm: c, log: named(log, "summarizer")}
}

// Summarize sets st.FinalAnswer with one blocking completion.
func (s *Summarizer) Summarize(ctx context.Context, st *domain.State) error {
	out, err := s.llm.Complete(ctx, summaryPrompt(st.Query, st.ValidatedResults))
	if err != nil {
		return fmt.Errorf("%w: summarize: %w", domain.ErrProvider, err)
	}
	st.FinalAnswer = out
	s.Finish(st)
	return nil
}

// Stream starts the same completion token by token. The caller appends each
// token to st.FinalAnswer in order, then calls Finish.
func (s *Summarizer) Stream(ctx context.Context, st *domain.State) (llm.TokenStream, error) {
	ts, err := s.llm.CompleteStream(ctx, summaryPrompt(st.Query, st.ValidatedResults))
	if err != nil {
		return nil, fmt.Errorf("%w: summarize: %w", domain.ErrProvider, err)
	}
	return ts, nil
}

// Finish records that the answer is complete.
func (s *Summarizer) Finish(st *domain.State) {
	st.Log("Summary: final answer generated")
	s.log.Debug("answer generated", zap.Int("chars", len(st.FinalAnswer)))
}
