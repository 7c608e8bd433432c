// Package store persists contradiction records.
package store

import (
	"context"
	"sort"
	"sync"

	"yeto/internal/contradiction/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

// InMemoryStore is a map-backed ContradictionStore for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.ContradictionID]*models.Record
	byPair  map[string]domain.ContradictionID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[domain.ContradictionID]*models.Record),
		byPair:  make(map[string]domain.ContradictionID),
	}
}

func (s *InMemoryStore) Upsert(ctx context.Context, record *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	if id, ok := s.byPair[record.PairKey()]; ok {
		existing := s.records[id]
		existing.ValueA = record.ValueA
		existing.ValueB = record.ValueB
		existing.SourcesA = append([]string(nil), record.SourcesA...)
		existing.SourcesB = append([]string(nil), record.SourcesB...)
		existing.Variance = record.Variance
		existing.Severity = record.Severity
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}

	cp := *record
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.records[cp.ID] = &cp
	s.byPair[cp.PairKey()] = cp.ID
	out := cp
	return &out, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id domain.ContradictionID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) List(ctx context.Context, entityID domain.EntityID, status models.Status) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, r := range s.records {
		if !entityID.IsNil() && r.Subject.EntityID != entityID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *record
	cp.UpdatedAt = requestcontext.Now(ctx)
	s.records[record.ID] = &cp
	record.UpdatedAt = cp.UpdatedAt
	return nil
}
