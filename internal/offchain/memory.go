package offchain

import (
	"context"
	"sync"

	"idledger/pkg/platform/sentinel"
)

// MemoryStore keeps mappings in a map for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]Mapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[string]Mapping)}
}

func (s *MemoryStore) Put(_ context.Context, mapping Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mappings[mapping.AssetID]; exists {
		return sentinel.ErrConflict
	}
	s.mappings[mapping.AssetID] = mapping
	return nil
}

func (s *MemoryStore) Get(_ context.Context, assetID string) (Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mapping, ok := s.mappings[assetID]
	if !ok {
		return Mapping{}, sentinel.ErrNotFound
	}
	return mapping, nil
}
