package handler

import (
	"time"

	"yeto/internal/claim/models"
)

// ClaimResponse is the wire shape of a claim.
type ClaimResponse struct {
	ID        string  `json:"id"`
	EntityID  string  `json:"entity_id"`
	Indicator string  `json:"indicator"`
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Vintage   string  `json:"vintage,omitempty"`

	Grade            string `json:"grade,omitempty"`
	GradeExplanation string `json:"grade_explanation,omitempty"`
	ConflictStatus   string `json:"conflict_status"`
	SupersededBy     string `json:"superseded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromClaim converts a claim model to its wire shape.
func FromClaim(c *models.Claim) ClaimResponse {
	resp := ClaimResponse{
		ID:               c.ID.String(),
		EntityID:         c.Subject.EntityID.String(),
		Indicator:        c.Subject.Indicator,
		Period:           c.Subject.Period,
		Value:            c.Value,
		Unit:             c.Unit,
		Vintage:          c.Vintage,
		Grade:            c.Grade.String(),
		GradeExplanation: c.GradeExplanation,
		ConflictStatus:   c.ConflictStatus.String(),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if !c.SupersededBy.IsNil() {
		resp.SupersededBy = c.SupersededBy.String()
	}
	return resp
}

// CitationResponse is the wire shape of a citation.
type CitationResponse struct {
	ID          string    `json:"id"`
	ClaimID     string    `json:"claim_id"`
	SourceID    string    `json:"source_id"`
	Publisher   string    `json:"publisher"`
	SourceType  string    `json:"source_type,omitempty"`
	URL         string    `json:"url,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	LicenseOpen bool      `json:"license_open"`
	Estimate    bool      `json:"estimate"`
	Archived    bool      `json:"archived"`
}

// FromCitation converts a citation model to its wire shape.
func FromCitation(c *models.Citation) CitationResponse {
	return CitationResponse{
		ID:          c.ID.String(),
		ClaimID:     c.ClaimID.String(),
		SourceID:    c.SourceID,
		Publisher:   c.Publisher,
		SourceType:  c.SourceType,
		URL:         c.URL,
		RetrievedAt: c.RetrievedAt,
		LicenseOpen: c.LicenseOpen,
		Estimate:    c.Estimate,
		Archived:    c.Archived,
	}
}

// GradeResponse is the wire shape of a stored grade.
type GradeResponse struct {
	ClaimID     string `json:"claim_id"`
	Grade       string `json:"grade"`
	Explanation string `json:"explanation"`
	Displayable bool   `json:"displayable"`
}
