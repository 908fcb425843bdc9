package memory

import (
	"context"
	"sync"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory checkpoint store.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[domain.SourceID]domain.Checkpoint
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[domain.SourceID]domain.Checkpoint)}
}

// Get retrieves the checkpoint for a source.
func (s *CheckpointStore) Get(_ context.Context, source domain.SourceID) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[source]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cp, nil
}

// Save stores or updates a checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.Source] = cp
	return nil
}

// Delete removes the checkpoint for a source.
func (s *CheckpointStore) Delete(_ context.Context, source domain.SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, source)
	return nil
}
