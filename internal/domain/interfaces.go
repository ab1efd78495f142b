package domain

import "context"

// Record is a single piece of evidence persisted in semantic memory.
// ID is derived from Text so identical evidence maps to the same record.
type Record struct {
	ID          string
	Text        string
	SourceQuery string
}

// Match is a stored record returned by a similarity search.
type Match struct {
	Record Record
	Score  float64
}

// WebSearcher returns text snippets for a query, best match first.
// A successful search never returns a nil slice.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// MemoryStore is the semantic memory shared across requests.
type MemoryStore interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
	Save(ctx context.Context, texts []string, sourceQuery string) error
	Clear(ctx context.Context) error
}

// MemoryCapability records whether a MemoryStore could be constructed.
// The zero value is unavailable.
type MemoryCapability struct {
	store  MemoryStore
	reason error
}

// MemoryAvailable wraps a ready store.
func MemoryAvailable(store MemoryStore) MemoryCapability {
	if store == nil {
		return MemoryUnavailable(ErrMemoryUnavailable)
	}
	return MemoryCapability{store: store}
}

// MemoryUnavailable records why memory cannot be used.
func MemoryUnavailable(reason error) MemoryCapability {
	if reason == nil {
		reason = ErrMemoryUnavailable
	}
	return MemoryCapability{reason: reason}
}

// Store returns the memory store and whether it is usable.
func (c MemoryCapability) Store() (MemoryStore, bool) {
	return c.store, c.store != nil
}

// Available reports whether memory-backed strategies may be selected.
func (c MemoryCapability) Available() bool { return c.store != nil }

// Reason explains an unavailable capability. It is nil when available.
func (c MemoryCapability) Reason() error {
	if c.store != nil {
		return nil
	}
	if c.reason == nil {
		return ErrMemoryUnavailable
	}
	return c.reason
}
