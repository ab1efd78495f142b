// Package llm defines the text-completion contract used by the research agents.
package llm

import "context"

// Options tunes a single completion request. Zero values fall back to the
// provider's configured defaults.
type Options struct {
	Temperature *float64
	MaxTokens   int
	Model       string
}

// Option configures a completion request.
type Option func(*Options)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxTokens caps the length of the response.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithModel overrides the configured model.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// Apply folds opts into an Options value.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TokenStream yields completion fragments in generation order.
// It is consumed once, like bufio.Scanner.
type TokenStream interface {
	Next() bool
	Token() string
	Err() error
	Close() error
}

// Completer is implemented by completion backends.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...Option) (string, error)
	CompleteStream(ctx context.Context, prompt string, opts ...Option) (TokenStream, error)
}
