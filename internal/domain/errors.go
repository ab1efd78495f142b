package domain

import "errors"

var (
	// ErrMemoryUnavailable marks a memory store that could not be constructed.
	ErrMemoryUnavailable = errors.New("memory store unavailable")
	// ErrProvider wraps failures of the completion or search services.
	ErrProvider = errors.New("provider call failed")
	// ErrEmptyQuery is returned when a run is started without a query.
	ErrEmptyQuery = errors.New("query is empty")
)
