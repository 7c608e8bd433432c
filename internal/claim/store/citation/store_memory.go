// Package citation persists evidence citations attached to claims.
package citation

import (
	"context"
	"sync"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
)

// ClaimGetter resolves a citation's claim to its subject entity. The postgres
// store does this with a join; the memory store asks the claim store.
type ClaimGetter interface {
	Get(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
}

// InMemoryStore is a map-backed CitationStore for tests and local runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	citations map[domain.CitationID]*models.Citation
	byClaim   map[domain.ClaimID][]domain.CitationID
	claims    ClaimGetter
}

func NewInMemory(claims ClaimGetter) *InMemoryStore {
	return &InMemoryStore{
		citations: make(map[domain.CitationID]*models.Citation),
		byClaim:   make(map[domain.ClaimID][]domain.CitationID),
		claims:    claims,
	}
}

func (s *InMemoryStore) Add(ctx context.Context, c *models.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.citations[c.ID] = &cp
	s.byClaim[c.ClaimID] = append(s.byClaim[c.ClaimID], c.ID)
	return nil
}

func (s *InMemoryStore) Archive(ctx context.Context, id domain.CitationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.citations[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Archived = true
	return nil
}

func (s *InMemoryStore) ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byClaim[claimID]
	out := make([]models.Citation, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.citations[id])
	}
	return out, nil
}

func (s *InMemoryStore) CountActiveByEntity(ctx context.Context, entityID domain.EntityID) (int, error) {
	s.mu.RLock()
	active := make([]domain.ClaimID, 0)
	for _, c := range s.citations {
		if !c.Archived {
			active = append(active, c.ClaimID)
		}
	}
	s.mu.RUnlock()

	count := 0
	for _, claimID := range active {
		claim, err := s.claims.Get(ctx, claimID)
		if err != nil {
			return 0, err
		}
		if claim.Subject.EntityID == entityID {
			count++
		}
	}
	return count, nil
}
