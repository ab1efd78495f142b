package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researcher/internal/domain"
	"researcher/internal/embedding"
	"researcher/internal/embedding/hashing"
	"researcher/internal/metrics"
	"researcher/internal/vectorstore"
	vmemory "researcher/internal/vectorstore/memory"
	"researcher/internal/vectorstore/sqlite"
)

type countingEmbedder struct {
	embedding.Embedder
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.Embed(ctx, text)
}

func newStore(t *testing.T) (*Store, *vmemory.Storage) {
	t.Helper()
	st := vmemory.NewStorage()
	return NewStore(hashing.NewEmbedder(128), st, Options{}), st
}

func TestRecordIDIsContentAddressed(t *testing.T) {
	assert.Equal(t, "doc_5d41402abc4b2a76b9719d911017c592", RecordID("hello"))
	assert.Equal(t, RecordID("same text"), RecordID("same text"))
	assert.NotEqual(t, RecordID("same text"), RecordID("same text."))
}

func TestSaveIsIdempotentPerText(t *testing.T) {
	ctx := context.Background()
	s, st := newStore(t)

	require.NoError(t, s.Save(ctx, []string{"Paris is the capital of France."}, "q1"))
	require.NoError(t, s.Save(ctx, []string{"Paris is the capital of France."}, "q2"))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := st.Search(ctx, mustEmbed(t, "capital of France"), 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "q2", matches[0].Record.SourceQuery, "last write wins on metadata")
}

func TestSaveSkipsBlankAndDuplicateTexts(t *testing.T) {
	ctx := context.Background()
	s, st := newStore(t)

	require.NoError(t, s.Save(ctx, []string{"", "   ", "alpha fact", "alpha fact", "beta fact"}, "q"))
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Save(ctx, []string{" ", ""}, "q"))
}

func TestSearchEmptyMemoryDoesNotEmbed(t *testing.T) {
	emb := &countingEmbedder{Embedder: hashing.NewEmbedder(32)}
	s := NewStore(emb, vmemory.NewStorage(), Options{})

	out, err := s.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, emb.calls)
}

func TestSearchClipsToRecordCountAndRanks(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Save(ctx, []string{
		"golang channels coordinate goroutines",
		"sourdough bread needs a starter",
	}, "q"))

	out, err := s.Search(ctx, "goroutines and channels in golang", 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "golang channels coordinate goroutines", out[0])
}

func TestSearchAppliesMinScore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(hashing.NewEmbedder(128), vmemory.NewStorage(), Options{MinScore: 0.5})
	require.NoError(t, s.Save(ctx, []string{
		"golang channels coordinate goroutines",
		"sourdough bread needs a starter",
	}, "q"))

	out, err := s.Search(ctx, "golang channels coordinate goroutines", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang channels coordinate goroutines"}, out)
}

func TestSearchPropagatesEmbedError(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{Embedder: hashing.NewEmbedder(32)}
	rec := metrics.New()
	s := NewStore(emb, vmemory.NewStorage(), Options{Metrics: rec})
	require.NoError(t, s.Save(ctx, []string{"stored fact"}, "q"))

	emb.err = errors.New("model offline")
	_, err := s.Search(ctx, "fact", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

func TestClearDropsRecords(t *testing.T) {
	ctx := context.Background()
	s, st := newStore(t)
	require.NoError(t, s.Save(ctx, []string{"one fact", "two facts"}, "q"))
	require.NoError(t, s.Clear(ctx))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	out, err := s.Search(ctx, "fact", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStoreOverSQLitePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *Store {
		st, err := sqlite.NewStorage(sqlite.Config{DataDir: dir})
		require.NoError(t, err)
		return NewStore(hashing.NewEmbedder(64), st, Options{})
	}

	s := open()
	require.NoError(t, s.Save(ctx, []string{"the moon orbits the earth"}, "q"))
	require.NoError(t, s.Close())

	s = open()
	defer s.Close()
	out, err := s.Search(ctx, "moon orbit", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"the moon orbits the earth"}, out)
}

func TestOpenReportsCapability(t *testing.T) {
	ctx := context.Background()
	okEmbedder := func() (embedding.Embedder, error) { return hashing.NewEmbedder(16), nil }
	okStorage := func() (vectorstore.Storage, error) { return vmemory.NewStorage(), nil }

	t.Run("available", func(t *testing.T) {
		capability, store := Open(ctx, OpenConfig{Enabled: true, Probe: true}, okEmbedder, okStorage)
		assert.True(t, capability.Available())
		require.NotNil(t, store)
		got, ok := capability.Store()
		assert.True(t, ok)
		assert.Same(t, store, got)
	})

	t.Run("disabled", func(t *testing.T) {
		capability, store := Open(ctx, OpenConfig{Enabled: false}, okEmbedder, okStorage)
		assert.False(t, capability.Available())
		assert.Nil(t, store)
		assert.ErrorIs(t, capability.Reason(), domain.ErrMemoryUnavailable)
	})

	t.Run("embedder constructor fails", func(t *testing.T) {
		failing := func() (embedding.Embedder, error) { return nil, errors.New("no model") }
		capability, store := Open(ctx, OpenConfig{Enabled: true}, failing, okStorage)
		assert.False(t, capability.Available())
		assert.Nil(t, store)
		assert.ErrorIs(t, capability.Reason(), domain.ErrMemoryUnavailable)
		assert.Contains(t, capability.Reason().Error(), "no model")
	})

	t.Run("storage constructor fails", func(t *testing.T) {
		failing := func() (vectorstore.Storage, error) { return nil, errors.New("disk full") }
		capability, _ := Open(ctx, OpenConfig{Enabled: true}, okEmbedder, failing)
		assert.False(t, capability.Available())
	})

	t.Run("probe fails", func(t *testing.T) {
		broken := func() (embedding.Embedder, error) {
			return &countingEmbedder{Embedder: hashing.NewEmbedder(16), err: errors.New("timeout")}, nil
		}
		capability, store := Open(ctx, OpenConfig{Enabled: true, Probe: true}, broken, okStorage)
		assert.False(t, capability.Available())
		assert.Nil(t, store)
	})
}

func mustEmbed(t *testing.T, text string) []float64 {
	t.Helper()
	v, err := hashing.NewEmbedder(128).Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}
