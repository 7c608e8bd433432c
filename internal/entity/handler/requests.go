package handler

import (
	"strings"

	"yeto/internal/entity/models"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
)

// ResolveRequest is the HTTP request body for POST /resolve.
type ResolveRequest struct {
	Name           string `json:"name"`
	ExternalSystem string `json:"external_system"`
	ExternalID     string `json:"external_id"`
}

// Validate checks shape only; ladder semantics live in the resolver.
func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 500 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 500 characters")
	}
	r.ExternalSystem = strings.TrimSpace(r.ExternalSystem)
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	if (r.ExternalSystem == "") != (r.ExternalID == "") {
		return dErrors.New(dErrors.CodeValidation, "external_system and external_id must be supplied together")
	}
	return nil
}

// DecideRequest is the HTTP request body for POST /review-cases/{id}/decision.
type DecideRequest struct {
	Approve      bool           `json:"approve"`
	Note         string         `json:"note"`
	LinkEntityID string         `json:"link_entity_id"`
	NewEntity    *NewEntityBody `json:"new_entity"`

	parsed models.ReviewDecision
}

// NewEntityBody describes the entity a reviewer wants created.
type NewEntityBody struct {
	NameEn    string `json:"name_en"`
	NameAr    string `json:"name_ar"`
	Kind      string `json:"kind"`
	RegimeTag string `json:"regime_tag"`
}

func (r *DecideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	decision := models.ReviewDecision{Approve: r.Approve, Note: strings.TrimSpace(r.Note)}

	if link := strings.TrimSpace(r.LinkEntityID); link != "" {
		id, err := domain.ParseEntityID(link)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "link_entity_id must be a valid entity id")
		}
		decision.LinkEntityID = id
	}
	if r.NewEntity != nil {
		decision.NewEntity = &models.NewEntitySpec{
			NameEn:    strings.TrimSpace(r.NewEntity.NameEn),
			NameAr:    strings.TrimSpace(r.NewEntity.NameAr),
			Kind:      domain.EntityKind(strings.TrimSpace(r.NewEntity.Kind)),
			RegimeTag: domain.RegimeTag(strings.TrimSpace(r.NewEntity.RegimeTag)),
		}
	}
	if err := decision.Validate(); err != nil {
		return err
	}

	r.parsed = decision
	return nil
}

// ParsedDecision returns the validated decision.
func (r *DecideRequest) ParsedDecision() models.ReviewDecision {
	return r.parsed
}

// MergeRequest is the HTTP request body for POST /entities/{id}/merge.
type MergeRequest struct {
	TargetEntityID string `json:"target_entity_id"`
	Note           string `json:"note"`

	parsedTarget domain.EntityID
}

func (r *MergeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	target := strings.TrimSpace(r.TargetEntityID)
	if target == "" {
		return dErrors.New(dErrors.CodeValidation, "target_entity_id is required")
	}
	id, err := domain.ParseEntityID(target)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "target_entity_id must be a valid entity id")
	}
	r.parsedTarget = id
	return nil
}

// ParsedTarget returns the validated target entity id.
func (r *MergeRequest) ParsedTarget() domain.EntityID {
	return r.parsedTarget
}

// DeprecateRequest is the HTTP request body for POST /entities/{id}/deprecate.
type DeprecateRequest struct {
	Note string `json:"note"`
}

func (r *DeprecateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}
