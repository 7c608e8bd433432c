package reviewcase

import (
	"context"
	"sync"
	"time"

	"yeto/internal/entity/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
)

// InMemoryStore holds review cases for unit tests and single-process runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	cases map[domain.ReviewCaseID]*models.ReviewCase
	// pending indexes open cases by normalized name + reason so repeated
	// resolutions of the same unknown name share one case.
	pending map[string]domain.ReviewCaseID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:   make(map[domain.ReviewCaseID]*models.ReviewCase),
		pending: make(map[string]domain.ReviewCaseID),
	}
}

func pendingKey(rc *models.ReviewCase) string {
	return rc.NormalizedName + "\x00" + string(rc.Reason)
}

func (s *InMemoryStore) UpsertPending(_ context.Context, rc *models.ReviewCase) (*models.ReviewCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.pending[pendingKey(rc)]; ok {
		existing := s.cases[id]
		existing.UpdatedAt = time.Now()
		copied := *existing
		return &copied, nil
	}

	now := time.Now()
	stored := *rc
	stored.Status = models.ReviewPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.cases[rc.ID] = &stored
	s.pending[pendingKey(rc)] = rc.ID

	copied := stored
	return &copied, nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ReviewCaseID) (*models.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.cases[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *rc
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, rc *models.ReviewCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.cases[rc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Status == models.ReviewPending && rc.Status != models.ReviewPending {
		delete(s.pending, pendingKey(prev))
	}
	stored := *rc
	stored.CreatedAt = prev.CreatedAt
	stored.UpdatedAt = time.Now()
	s.cases[rc.ID] = &stored
	rc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.ReviewStatus) ([]*models.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ReviewCase
	for _, rc := range s.cases {
		if rc.Status == status {
			copied := *rc
			out = append(out, &copied)
		}
	}
	return out, nil
}
