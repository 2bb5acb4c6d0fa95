package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is a volatile Store keeping runs in a process local map.
// It is safe for concurrent access and best suited for tests or the CLI.
// Runs are cloned on the way in and out to prevent external mutation of
// internal state.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]*Run)}
}

// Save stores a clone of run.
func (s *InMemoryStore) Save(_ context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get returns a clone of the run with the given id.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.runs[id]; ok {
		return run.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns clones of the matching runs, newest first.
func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*Run, error) {
	s.mu.RLock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Match(run) {
			out = append(out, run.Clone())
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func sortNewestFirst(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}
