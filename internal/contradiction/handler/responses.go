package handler

import (
	"time"

	"yeto/internal/contradiction/models"
)

// RecordResponse is the wire shape of a contradiction record.
type RecordResponse struct {
	ID        string  `json:"id"`
	EntityID  string  `json:"entity_id"`
	Indicator string  `json:"indicator"`
	Period    string  `json:"period"`
	ClaimA    string   `json:"claim_a"`
	ClaimB    string   `json:"claim_b"`
	ValueA    float64  `json:"value_a"`
	ValueB    float64  `json:"value_b"`
	SourcesA  []string `json:"sources_a"`
	SourcesB  []string `json:"sources_b"`
	Variance  float64  `json:"variance"`
	Severity  string   `json:"severity"`

	Status          string `json:"status"`
	PlausibleReason string `json:"plausible_reason,omitempty"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromRecord converts a record to its wire shape.
func FromRecord(r *models.Record) RecordResponse {
	return RecordResponse{
		ID:              r.ID.String(),
		EntityID:        r.Subject.EntityID.String(),
		Indicator:       r.Subject.Indicator,
		Period:          r.Subject.Period,
		ClaimA:          r.ClaimA.String(),
		ClaimB:          r.ClaimB.String(),
		ValueA:          r.ValueA,
		ValueB:          r.ValueB,
		SourcesA:        r.SourcesA,
		SourcesB:        r.SourcesB,
		Variance:        r.Variance,
		Severity:        string(r.Severity),
		Status:          string(r.Status),
		PlausibleReason: string(r.PlausibleReason),
		ResolutionNotes: r.ResolutionNotes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RecordListResponse wraps a record list.
type RecordListResponse struct {
	Contradictions []RecordResponse `json:"contradictions"`
	Total          int              `json:"total"`
}

// FromRecords converts a record list to its wire shape.
func FromRecords(records []*models.Record) RecordListResponse {
	out := RecordListResponse{Contradictions: make([]RecordResponse, 0, len(records))}
	for _, r := range records {
		out.Contradictions = append(out.Contradictions, FromRecord(r))
	}
	out.Total = len(out.Contradictions)
	return out
}

// ScanResponse summarizes a detection sweep.
type ScanResponse struct {
	SubjectsScanned int `json:"subjects_scanned"`
	PairsCompared   int `json:"pairs_compared"`
	Detections      int `json:"detections"`
}
