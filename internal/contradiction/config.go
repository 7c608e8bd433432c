// Package contradiction holds the detector configuration shared by its
// service and stores.
package contradiction

import (
	dErrors "yeto/pkg/domain-errors"
)

// Config holds the variance thresholds. The platform has historically used
// slightly different cut lines in different pipelines; they are centralized
// here and injected at construction.
type Config struct {
	// HighVariance marks a disagreement severe (default 0.50).
	HighVariance float64

	// ModerateVariance is the detection floor: pairs below it are treated as
	// ordinary measurement noise and produce no record (default 0.20).
	ModerateVariance float64

	// ScanConcurrency bounds how many subjects are scanned in parallel.
	ScanConcurrency int
}

// DefaultConfig returns the platform's operating thresholds.
func DefaultConfig() Config {
	return Config{
		HighVariance:     0.50,
		ModerateVariance: 0.20,
		ScanConcurrency:  8,
	}
}

// Validate rejects threshold orderings that would make detection vacuous.
func (c Config) Validate() error {
	if c.ModerateVariance <= 0 || c.ModerateVariance >= 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "moderate variance threshold must be in (0, 1)")
	}
	if c.HighVariance <= c.ModerateVariance {
		return dErrors.New(dErrors.CodeInvalidInput, "high variance threshold must exceed the moderate threshold")
	}
	if c.ScanConcurrency <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "scan concurrency must be positive")
	}
	return nil
}
