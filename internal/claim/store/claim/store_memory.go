package claim

import (
	"context"
	"sync"
	"time"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-process runs. Version-conditioned
// writes behave exactly like the postgres store so optimistic-concurrency
// paths are testable without a database.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[domain.ClaimID]*models.Claim
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{claims: make(map[domain.ClaimID]*models.Claim)}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[c.ID]; exists {
		return sentinel.ErrConflict
	}
	now := time.Now()
	stored := *c
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.claims[c.ID] = &stored
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject models.Subject) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Claim
	for _, c := range s.claims {
		if c.Subject == subject {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListSubjects(_ context.Context) ([]models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[models.Subject]struct{})
	var subjects []models.Subject
	for _, c := range s.claims {
		if _, ok := seen[c.Subject]; ok {
			continue
		}
		seen[c.Subject] = struct{}{}
		subjects = append(subjects, c.Subject)
	}
	return subjects, nil
}

func (s *InMemoryStore) UpdateGrade(_ context.Context, id domain.ClaimID, version int64, grade domain.Grade, explanation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Version != version {
		return sentinel.ErrConflict
	}
	c.Grade = grade
	c.GradeExplanation = explanation
	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) UpdateConflict(_ context.Context, id domain.ClaimID, version int64, status domain.ConflictStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Version != version {
		return sentinel.ErrConflict
	}
	c.ConflictStatus = status
	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) MarkSuperseded(_ context.Context, id domain.ClaimID, by domain.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.SupersededBy = by
	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}
