// Package grading computes confidence grades for claims from their evidence
// citations. Thresholds and source classifications are configuration, not
// constants: the surrounding platform has historically embedded slightly
// different literals in different places, so everything tunable lives here.
package grading

import (
	"time"

	dErrors "yeto/pkg/domain-errors"
)

// Config holds the grading knobs.
type Config struct {
	// RecencyWindow is how recently a primary citation must have been
	// retrieved to support an A grade.
	RecencyWindow time.Duration

	// PrimarySourceTypes are treated as official/primary evidence.
	PrimarySourceTypes []string

	// SecondarySourceTypes are reputable but non-official evidence.
	SecondarySourceTypes []string
}

// DefaultConfig mirrors the platform's operating defaults: a one-year window,
// official and multilateral publishers as primary.
func DefaultConfig() Config {
	return Config{
		RecencyWindow:        365 * 24 * time.Hour,
		PrimarySourceTypes:   []string{"official", "central_bank", "multilateral"},
		SecondarySourceTypes: []string{"un_agency", "research", "think_tank", "ngo"},
	}
}

// Validate rejects configurations that would make grading vacuous.
func (c Config) Validate() error {
	if c.RecencyWindow <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "recency window must be positive")
	}
	if len(c.PrimarySourceTypes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one primary source type is required")
	}
	return nil
}

func (c Config) isPrimary(sourceType string) bool {
	for _, t := range c.PrimarySourceTypes {
		if t == sourceType {
			return true
		}
	}
	return false
}

func (c Config) isSecondary(sourceType string) bool {
	for _, t := range c.SecondarySourceTypes {
		if t == sourceType {
			return true
		}
	}
	return false
}
