// Package registry holds the fixed table of well-known organizations. It is
// loaded once at startup from an embedded data file and is immutable after
// Load; the resolver consults it before any live-store lookup.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"yeto/internal/normalize"
	"yeto/pkg/domain"
)

//go:embed entities.json
var entitiesJSON []byte

// Entry is one canonical organization: names in both languages, its kind, the
// regime tag, known aliases, and external-system identifiers.
type Entry struct {
	Code        string            `json:"code"`
	NameEn      string            `json:"name_en"`
	NameAr      string            `json:"name_ar"`
	Kind        domain.EntityKind `json:"kind"`
	RegimeTag   domain.RegimeTag  `json:"regime_tag"`
	Aliases     []string          `json:"aliases"`
	ExternalIDs map[string]string `json:"external_ids"`
}

// Registry is the immutable lookup structure over the canonical table.
type Registry struct {
	entries    []Entry
	byName     map[string]*Entry
	byAlias    map[string]*Entry
	byExternal map[string]*Entry
}

func externalKey(system, externalID string) string {
	return system + "\x00" + externalID
}

// Load parses and indexes the embedded canonical table. It fails on duplicate
// normalized names, alias collisions across entries, duplicate external ids,
// and invalid kinds or regime tags, so a bad data file can never start the
// process.
func Load() (*Registry, error) {
	var entries []Entry
	if err := json.Unmarshal(entitiesJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse canonical entities: %w", err)
	}

	r := &Registry{
		entries:    entries,
		byName:     make(map[string]*Entry),
		byAlias:    make(map[string]*Entry),
		byExternal: make(map[string]*Entry),
	}

	for i := range r.entries {
		e := &r.entries[i]
		if _, err := domain.ParseEntityKind(string(e.Kind)); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Code, err)
		}
		if !e.RegimeTag.IsValid() {
			return nil, fmt.Errorf("entry %s: invalid regime tag %q", e.Code, e.RegimeTag)
		}

		for _, name := range []string{e.NameEn, e.NameAr} {
			key := normalize.Name(name)
			if key == "" {
				continue
			}
			if prev, ok := r.byName[key]; ok && prev != e {
				return nil, fmt.Errorf("entry %s: name %q collides with entry %s", e.Code, name, prev.Code)
			}
			r.byName[key] = e
		}

		for _, alias := range e.Aliases {
			key := normalize.Name(alias)
			if key == "" {
				continue
			}
			if prev, ok := r.byAlias[key]; ok && prev != e {
				return nil, fmt.Errorf("entry %s: alias %q collides with entry %s", e.Code, alias, prev.Code)
			}
			r.byAlias[key] = e
		}

		for system, externalID := range e.ExternalIDs {
			key := externalKey(system, externalID)
			if prev, ok := r.byExternal[key]; ok && prev != e {
				return nil, fmt.Errorf("entry %s: external id %s/%s collides with entry %s", e.Code, system, externalID, prev.Code)
			}
			r.byExternal[key] = e
		}
	}

	return r, nil
}

// FindByName looks up an entry whose primary or secondary name normalizes to
// the given normalized name.
func (r *Registry) FindByName(normalized string) (*Entry, bool) {
	e, ok := r.byName[normalized]
	return e, ok
}

// FindByAlias looks up an entry by one of its known aliases.
func (r *Registry) FindByAlias(normalized string) (*Entry, bool) {
	e, ok := r.byAlias[normalized]
	return e, ok
}

// FindByExternalID looks up an entry by (external system, external id).
func (r *Registry) FindByExternalID(system, externalID string) (*Entry, bool) {
	e, ok := r.byExternal[externalKey(system, externalID)]
	return e, ok
}

// All returns every canonical entry, for seeding and audits.
func (r *Registry) All() []Entry {
	return r.entries
}

// Len returns the number of canonical entries.
func (r *Registry) Len() int { return len(r.entries) }
