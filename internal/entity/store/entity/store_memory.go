package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yeto/internal/entity/models"
	"yeto/internal/normalize"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-process runs. Indexes mirror the
// postgres unique constraints: normalized names, alias strings, and
// (system, external id) pairs each resolve to at most one entity.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[domain.EntityID]*models.Entity
	byName   map[string]domain.EntityID
	byAlias  map[string]domain.EntityID
	byExtRef map[string]domain.EntityID
	aliases  map[domain.EntityID][]models.Alias
	extRefs  map[domain.EntityID][]models.ExternalReference
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entities: make(map[domain.EntityID]*models.Entity),
		byName:   make(map[string]domain.EntityID),
		byAlias:  make(map[string]domain.EntityID),
		byExtRef: make(map[string]domain.EntityID),
		aliases:  make(map[domain.EntityID][]models.Alias),
		extRefs:  make(map[domain.EntityID][]models.ExternalReference),
	}
}

func refKey(system, externalID string) string { return system + "\x00" + externalID }

func (s *InMemoryStore) Create(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{e.NameEn, e.NameAr} {
		key := normalize.Name(name)
		if key == "" {
			continue
		}
		if _, exists := s.byName[key]; exists {
			return fmt.Errorf("entity name %q: %w", name, sentinel.ErrConflict)
		}
	}

	now := time.Now()
	stored := *e
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entities[e.ID] = &stored

	for _, name := range []string{e.NameEn, e.NameAr} {
		if key := normalize.Name(name); key != "" {
			s.byName[key] = e.ID
		}
	}

	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.entities[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}

	// Re-index on rename.
	for _, name := range []string{prev.NameEn, prev.NameAr} {
		if key := normalize.Name(name); key != "" {
			delete(s.byName, key)
		}
	}
	for _, name := range []string{e.NameEn, e.NameAr} {
		key := normalize.Name(name)
		if key == "" {
			continue
		}
		if other, exists := s.byName[key]; exists && other != e.ID {
			return fmt.Errorf("entity name %q: %w", name, sentinel.ErrConflict)
		}
		s.byName[key] = e.ID
	}

	stored := *e
	stored.CreatedAt = prev.CreatedAt
	stored.UpdatedAt = time.Now()
	s.entities[e.ID] = &stored
	e.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *InMemoryStore) FindByNormalizedName(_ context.Context, normalized string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[normalized]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e := s.entities[id]
	if e.Status == models.StatusMerged {
		return nil, sentinel.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *InMemoryStore) FindByAlias(_ context.Context, normalized string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAlias[normalized]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.entities[id]
	return &copied, nil
}

func (s *InMemoryStore) FindByExternalRef(_ context.Context, system, externalID string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExtRef[refKey(system, externalID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.entities[id]
	return &copied, nil
}

func (s *InMemoryStore) AddAlias(_ context.Context, alias models.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[alias.EntityID]; !ok {
		return sentinel.ErrNotFound
	}
	key := normalize.Name(alias.Alias)
	if key == "" {
		return nil
	}
	if owner, exists := s.byAlias[key]; exists {
		if owner != alias.EntityID {
			return fmt.Errorf("alias %q already owned by another entity: %w", alias.Alias, sentinel.ErrConflict)
		}
		return nil
	}
	s.byAlias[key] = alias.EntityID
	s.aliases[alias.EntityID] = append(s.aliases[alias.EntityID], alias)
	return nil
}

func (s *InMemoryStore) AddExternalRef(_ context.Context, ref models.ExternalReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[ref.EntityID]; !ok {
		return sentinel.ErrNotFound
	}
	key := refKey(ref.System, ref.ExternalID)
	if owner, exists := s.byExtRef[key]; exists {
		if owner != ref.EntityID {
			return fmt.Errorf("external ref %s/%s already owned by another entity: %w", ref.System, ref.ExternalID, sentinel.ErrConflict)
		}
		return nil
	}
	s.byExtRef[key] = ref.EntityID
	s.extRefs[ref.EntityID] = append(s.extRefs[ref.EntityID], ref)
	return nil
}

func (s *InMemoryStore) ListAliases(_ context.Context, id domain.EntityID) ([]models.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alias, len(s.aliases[id]))
	copy(out, s.aliases[id])
	return out, nil
}

func (s *InMemoryStore) ListExternalRefs(_ context.Context, id domain.EntityID) ([]models.ExternalReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExternalReference, len(s.extRefs[id]))
	copy(out, s.extRefs[id])
	return out, nil
}

func (s *InMemoryStore) MoveAliases(_ context.Context, from, to domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[to]; !ok {
		return sentinel.ErrNotFound
	}
	for _, alias := range s.aliases[from] {
		alias.EntityID = to
		s.aliases[to] = append(s.aliases[to], alias)
		if key := normalize.Name(alias.Alias); key != "" {
			s.byAlias[key] = to
		}
	}
	delete(s.aliases, from)
	return nil
}

func (s *InMemoryStore) MoveExternalRefs(_ context.Context, from, to domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[to]; !ok {
		return sentinel.ErrNotFound
	}
	for _, ref := range s.extRefs[from] {
		ref.EntityID = to
		s.extRefs[to] = append(s.extRefs[to], ref)
		s.byExtRef[refKey(ref.System, ref.ExternalID)] = to
	}
	delete(s.extRefs, from)
	return nil
}
