package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"researcher/internal/llm"
)

// Client is an OpenAI-compatible chat completions client (OpenAI, Groq, Ollama's /v1).
type Client struct {
	model       string
	maxTokens   int
	temperature float64
	api         *openai.Client
	streaming   *openai.Client
}

// Config configures the chat completions client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

var _ llm.Completer = (*Client)(nil)

// NewClient creates a completions client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	retrying := &retryTransport{next: http.DefaultTransport, maxRetries: cfg.MaxRetries}
	return &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		api:         newAPI(key, cfg.BaseURL, &http.Client{Timeout: t, Transport: retrying}),
		// streamed bodies outlive any fixed timeout; cancellation comes from ctx
		streaming: newAPI(key, cfg.BaseURL, &http.Client{Transport: retrying}),
	}, nil
}

func newAPI(key, baseURL string, hc *http.Client) *openai.Client {
	oc := openai.DefaultConfig(key)
	oc.BaseURL = strings.TrimRight(baseURL, "/")
	oc.HTTPClient = hc
	return openai.NewClientWithConfig(oc)
}

// Complete sends a single-turn prompt and returns the full response text.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt, false, llm.Apply(opts...)))
	if err != nil {
		return "", fmt.Errorf("chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream sends the prompt with stream=true and yields delta fragments.
// Unless overridden, streaming uses the provider's own sampling defaults.
func (c *Client) CompleteStream(ctx context.Context, prompt string, opts ...llm.Option) (llm.TokenStream, error) {
	s, err := c.streaming.CreateChatCompletionStream(ctx, c.request(prompt, true, llm.Apply(opts...)))
	if err != nil {
		return nil, fmt.Errorf("chat completions: %w", err)
	}
	return &stream{resp: s}, nil
}

func (c *Client) request(prompt string, streaming bool, o llm.Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Stream:   streaming,
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if !streaming {
		req.MaxTokens = c.maxTokens
		req.Temperature = float32(c.temperature)
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	// a zero temperature is omitted on the wire and means provider default
	if o.Temperature != nil {
		req.Temperature = float32(*o.Temperature)
	}
	return req
}

type stream struct {
	resp  *openai.ChatCompletionStream
	token string
	err   error
	done  bool
}

func (s *stream) Next() bool {
	for !s.done {
		chunk, err := s.resp.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("chat completions stream: %w", err)
			s.done = true
			return false
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.token = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *stream) Token() string { return s.token }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.done = true
	s.resp.Close()
	return nil
}
