package handler

import (
	"time"

	"yeto/internal/entity/models"
)

// ResolveResponse is the HTTP response for POST /resolve.
type ResolveResponse struct {
	Outcome      string  `json:"outcome"`
	EntityID     string  `json:"entity_id,omitempty"`
	MatchType    string  `json:"match_type"`
	Confidence   float64 `json:"confidence"`
	ReviewCaseID string  `json:"review_case_id,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// FromResolution converts a domain ResolutionResult to an HTTP response.
func FromResolution(result *models.ResolutionResult) *ResolveResponse {
	resp := &ResolveResponse{
		Outcome:    string(result.Outcome),
		MatchType:  string(result.MatchType),
		Confidence: result.Confidence,
		Reason:     string(result.Reason),
	}
	if !result.EntityID.IsNil() {
		resp.EntityID = result.EntityID.String()
	}
	if !result.ReviewCaseID.IsNil() {
		resp.ReviewCaseID = result.ReviewCaseID.String()
	}
	return resp
}

// EntityResponse is the HTTP shape of an entity.
type EntityResponse struct {
	ID           string    `json:"id"`
	NameEn       string    `json:"name_en"`
	NameAr       string    `json:"name_ar,omitempty"`
	Kind         string    `json:"kind"`
	RegimeTag    string    `json:"regime_tag"`
	RegimeStatus string    `json:"regime_status"`
	Status       string    `json:"status"`
	MergedInto   string    `json:"merged_into,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func FromEntity(e *models.Entity) *EntityResponse {
	resp := &EntityResponse{
		ID:           e.ID.String(),
		NameEn:       e.NameEn,
		NameAr:       e.NameAr,
		Kind:         string(e.Kind),
		RegimeTag:    string(e.RegimeTag),
		RegimeStatus: string(e.RegimeStatus),
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if !e.MergedInto.IsNil() {
		resp.MergedInto = e.MergedInto.String()
	}
	return resp
}

// ReviewCaseResponse is the HTTP shape of a review case.
type ReviewCaseResponse struct {
	ID               string    `json:"id"`
	CandidateName    string    `json:"candidate_name"`
	Reason           string    `json:"reason"`
	ProposedAction   string    `json:"proposed_action,omitempty"`
	EvidenceSummary  string    `json:"evidence_summary,omitempty"`
	Status           string    `json:"status"`
	DecidedBy        string    `json:"decided_by,omitempty"`
	DecisionNote     string    `json:"decision_note,omitempty"`
	ResolvedEntityID string    `json:"resolved_entity_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func FromReviewCase(rc *models.ReviewCase) *ReviewCaseResponse {
	resp := &ReviewCaseResponse{
		ID:              rc.ID.String(),
		CandidateName:   rc.CandidateName,
		Reason:          string(rc.Reason),
		ProposedAction:  rc.ProposedAction,
		EvidenceSummary: rc.EvidenceSummary,
		Status:          string(rc.Status),
		DecidedBy:       rc.DecidedBy,
		DecisionNote:    rc.DecisionNote,
		CreatedAt:       rc.CreatedAt,
		UpdatedAt:       rc.UpdatedAt,
	}
	if !rc.ResolvedEntityID.IsNil() {
		resp.ResolvedEntityID = rc.ResolvedEntityID.String()
	}
	return resp
}

// ReviewCaseListResponse is the HTTP response for GET /review-cases.
type ReviewCaseListResponse struct {
	Cases []*ReviewCaseResponse `json:"cases"`
}

func FromReviewCases(cases []*models.ReviewCase) *ReviewCaseListResponse {
	out := &ReviewCaseListResponse{Cases: make([]*ReviewCaseResponse, 0, len(cases))}
	for _, rc := range cases {
		out.Cases = append(out.Cases, FromReviewCase(rc))
	}
	return out
}
