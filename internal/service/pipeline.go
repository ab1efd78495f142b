package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/llm"
	"researcher/internal/metrics"
)

type Classifier interface {
	Classify(ctx context.Context, st *domain.State) error
}

type Collector interface {
	Collect(ctx context.Context, st *domain.State) error
}

type FactValidator interface {
	Validate(ctx context.Context, st *domain.State) error
}

type Synthesizer interface {
	Summarize(ctx context.Context, st *domain.State) error
	Stream(ctx context.Context, st *domain.State) (llm.TokenStream, error)
	Finish(st *domain.State)
}

// Agents are the four pipeline steps.
type Agents struct {
	Manager    Classifier
	Research   Collector
	Validation FactValidator
	Summary    Synthesizer
}

// Pipeline runs a query through manager, research, validation and summary.
// It is safe for concurrent runs; each run owns its State.
type Pipeline struct {
	agents  Agents
	metrics *metrics.Recorder
	log     *zap.Logger
}

func NewPipeline(agents Agents, m *metrics.Recorder, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{agents: agents, metrics: m, log: log.With(zap.String("module", "pipeline"))}
}

type node int

const (
	nodeStart node = iota
	nodeManager
	nodeResearch
	nodeValidation
	nodeSummary
	nodeEnd
)

// next is the fixed step graph. Only the manager edge branches.
func next(n node, st *domain.State) node {
	switch n {
	case nodeStart:
		return nodeManager
	case nodeManager:
		if st.Strategy == domain.StrategyDirectAnswer {
			return nodeSummary
		}
		return nodeResearch
	case nodeResearch:
		return nodeValidation
	case nodeValidation:
		return nodeSummary
	default:
		return nodeEnd
	}
}

func (n node) agent() string {
	switch n {
	case nodeManager:
		return AgentManager
	case nodeResearch:
		return AgentResearch
	case nodeValidation:
		return AgentValidation
	case nodeSummary:
		return AgentSummary
	}
	return ""
}

var runningMessages = map[node]string{
	nodeManager:    "Choosing a research strategy",
	nodeResearch:   "Gathering evidence",
	nodeValidation: "Validating facts",
	nodeSummary:    "Writing the answer",
}

func completeMessage(n node, st *domain.State) string {
	switch n {
	case nodeManager:
		return fmt.Sprintf("Strategy: %s", st.Strategy)
	case nodeResearch:
		return fmt.Sprintf("Found %d results", len(st.ResearchResults))
	case nodeValidation:
		return fmt.Sprintf("Validated %d facts", len(st.ValidatedResults))
	default:
		return "Summary generated"
	}
}

// Run executes the pipeline and returns the final state. On a fatal error
// no state is returned.
func (p *Pipeline) Run(ctx context.Context, query string) (*domain.State, error) {
	return p.execute(ctx, query, nil)
}

// Stream executes the pipeline like Run, reporting progress through emit.
// A fatal error, including an empty query, is reported as a final error event. When emit fails or ctx
// is done, nothing more is emitted.
func (p *Pipeline) Stream(ctx context.Context, query string, emit func(Event) error) (*domain.State, error) {
	if emit == nil {
		return nil, errors.New("stream: nil emit")
	}
	return p.execute(ctx, query, emit)
}

// emitError marks a failure of the consumer rather than of the pipeline.
type emitError struct{ err error }

func (e *emitError) Error() string { return "emit event: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

type run struct {
	p    *Pipeline
	st   *domain.State
	emit func(Event) error
}

func (r *run) send(ev Event) error {
	if r.emit == nil {
		return nil
	}
	if err := r.emit(ev); err != nil {
		return &emitError{err: err}
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, query string, emit func(Event) error) (st *domain.State, err error) {
	query = strings.TrimSpace(query)
	r := &run{p: p, st: domain.NewState(query), emit: emit}
	if query == "" {
		r.fail(ctx, domain.ErrEmptyQuery)
		return nil, domain.ErrEmptyQuery
	}
	started := time.Now()
	defer func() {
		p.metrics.ObserveRun(string(r.st.Strategy), err)
		if err != nil {
			p.log.Error("run failed", zap.String("query", query), zap.String("strategy", string(r.st.Strategy)), zap.Error(err))
			r.fail(ctx, err)
			st = nil
			return
		}
		p.log.Info("run complete", zap.String("query", query), zap.String("strategy", string(r.st.Strategy)),
			zap.Duration("elapsed", time.Since(started)))
	}()

	if err := r.send(Event{Type: EventStart, Message: "Starting research..."}); err != nil {
		return nil, err
	}
	for n := next(nodeStart, r.st); n != nodeEnd; n = next(n, r.st) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.step(ctx, n); err != nil {
			return nil, err
		}
	}
	if err := r.send(Event{Type: EventComplete, FinalAnswer: r.st.FinalAnswer, Logs: r.st.Logs}); err != nil {
		return nil, err
	}
	return r.st, nil
}

// fail emits the terminal error event unless the consumer is gone.
func (r *run) fail(ctx context.Context, err error) {
	var ee *emitError
	if r.emit == nil || errors.As(err, &ee) || ctx.Err() != nil {
		return
	}
	_ = r.emit(Event{Type: EventError, Message: err.Error()})
}

func (r *run) step(ctx context.Context, n node) error {
	agent := n.agent()
	if err := r.send(Event{Type: EventAgent, Agent: agent, Status: StatusRunning, Message: runningMessages[n]}); err != nil {
		return err
	}
	started := time.Now()
	var err error
	switch n {
	case nodeManager:
		err = r.p.agents.Manager.Classify(ctx, r.st)
	case nodeResearch:
		err = r.p.agents.Research.Collect(ctx, r.st)
	case nodeValidation:
		err = r.p.agents.Validation.Validate(ctx, r.st)
	case nodeSummary:
		if r.emit == nil {
			err = r.p.agents.Summary.Summarize(ctx, r.st)
		} else {
			err = r.streamSummary(ctx)
		}
	}
	r.p.metrics.ObserveStep(agent, time.Since(started))
	if err != nil {
		return err
	}
	return r.send(Event{Type: EventAgent, Agent: agent, Status: StatusComplete, Message: completeMessage(n, r.st)})
}

func (r *run) streamSummary(ctx context.Context) error {
	if err := r.send(Event{Type: EventSummaryStart}); err != nil {
		return err
	}
	ts, err := r.p.agents.Summary.Stream(ctx, r.st)
	if err != nil {
		return err
	}
	defer ts.Close()

	for ts.Next() {
		tok := ts.Token()
		r.st.FinalAnswer += tok
		if err := r.send(Event{Type: EventSummaryChunk, Content: tok}); err != nil {
			return err
		}
	}
	if err := ts.Err(); err != nil {
		return fmt.Errorf("%w: summary stream: %w", domain.ErrProvider, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.p.agents.Summary.Finish(r.st)
	return nil
}
