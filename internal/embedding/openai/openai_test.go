package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedLearnsDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()
	t.Setenv("TEST_EMBED_KEY", "k")

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_EMBED_KEY"})
	require.NoError(t, err)
	assert.Zero(t, c.Dimension())

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbedAcceptsOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"embedding":[1,0]}`)
	}))
	defer srv.Close()
	t.Setenv("TEST_EMBED_KEY", "k")

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_EMBED_KEY"})
	require.NoError(t, err)
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, v)
}

func TestEmbedFailsFastOnClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	t.Setenv("TEST_EMBED_KEY", "k")

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_EMBED_KEY"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestRetryDelayIsCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(-1))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	for _, attempt := range []int{5, 35, 40, 64, 1000} {
		assert.Equal(t, 5*time.Second, retryDelay(attempt), "attempt %d", attempt)
	}
}
