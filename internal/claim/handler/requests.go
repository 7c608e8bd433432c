package handler

import (
	"strings"
	"time"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
)

// ClaimBody is the wire shape of a claim at ingestion.
type ClaimBody struct {
	EntityID  string  `json:"entity_id"`
	Indicator string  `json:"indicator"`
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Vintage   string  `json:"vintage"`

	parsed *models.Claim
}

func (r *ClaimBody) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	entityID, err := domain.ParseEntityID(strings.TrimSpace(r.EntityID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "entity_id must be a valid entity id")
	}
	claim := &models.Claim{
		Subject: models.Subject{
			EntityID:  entityID,
			Indicator: strings.TrimSpace(r.Indicator),
			Period:    strings.TrimSpace(r.Period),
		},
		Value:   r.Value,
		Unit:    strings.TrimSpace(r.Unit),
		Vintage: strings.TrimSpace(r.Vintage),
	}
	if err := claim.Validate(); err != nil {
		return err
	}
	r.parsed = claim
	return nil
}

// ParsedClaim returns the claim model built during validation.
func (r *ClaimBody) ParsedClaim() *models.Claim { return r.parsed }

// CitationBody is the wire shape of a citation.
type CitationBody struct {
	SourceID    string    `json:"source_id"`
	Publisher   string    `json:"publisher"`
	SourceType  string    `json:"source_type"`
	URL         string    `json:"url"`
	RetrievedAt time.Time `json:"retrieved_at"`
	LicenseOpen bool      `json:"license_open"`
	Estimate    bool      `json:"estimate"`
}

func (r *CitationBody) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SourceID = strings.TrimSpace(r.SourceID)
	if r.SourceID == "" {
		return dErrors.New(dErrors.CodeValidation, "source_id is required")
	}
	r.Publisher = strings.TrimSpace(r.Publisher)
	if r.Publisher == "" {
		return dErrors.New(dErrors.CodeValidation, "publisher is required")
	}
	if r.RetrievedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "retrieved_at is required")
	}
	r.SourceType = strings.TrimSpace(r.SourceType)
	r.URL = strings.TrimSpace(r.URL)
	return nil
}

// Citation builds the citation model for a claim.
func (r *CitationBody) Citation(claimID domain.ClaimID) *models.Citation {
	return &models.Citation{
		ClaimID:     claimID,
		SourceID:    r.SourceID,
		Publisher:   r.Publisher,
		SourceType:  r.SourceType,
		URL:         r.URL,
		RetrievedAt: r.RetrievedAt,
		LicenseOpen: r.LicenseOpen,
		Estimate:    r.Estimate,
	}
}

// SupersedeRequest is the HTTP request body for POST /claims/{id}/supersede.
type SupersedeRequest struct {
	Replacement *ClaimBody `json:"replacement"`
}

func (r *SupersedeRequest) Validate() error {
	if r == nil || r.Replacement == nil {
		return dErrors.New(dErrors.CodeBadRequest, "replacement claim is required")
	}
	return r.Replacement.Validate()
}
