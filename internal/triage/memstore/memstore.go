// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

// Store holds evaluations in memory. Suitable for dev/testing.
type Store struct {
	mu          sync.RWMutex
	evaluations map[string]*triage.Evaluation // evaluation ID -> evaluation
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		evaluations: make(map[string]*triage.Evaluation),
	}
}

// Get retrieves an evaluation by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Evaluation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evaluations[id]
	if !ok {
		return nil, false, nil
	}
	return clone(ev), true, nil
}

// Put stores a copy of the evaluation.
func (s *Store) Put(_ context.Context, ev *triage.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations[ev.ID] = clone(ev)
	return nil
}

// clone copies the predictions map too, so callers never share it with the store.
func clone(ev *triage.Evaluation) *triage.Evaluation {
	cp := *ev
	if ev.Predictions != nil {
		cp.Predictions = make(triage.Predictions, len(ev.Predictions))
		for k, v := range ev.Predictions {
			cp.Predictions[k] = v
		}
	}
	return &cp
}
