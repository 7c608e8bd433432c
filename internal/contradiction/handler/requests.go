package handler

import (
	"strings"

	"yeto/internal/contradiction/models"
	dErrors "yeto/pkg/domain-errors"
)

// TransitionRequest is the HTTP request body for a status transition.
type TransitionRequest struct {
	Status          string `json:"status"`
	PlausibleReason string `json:"plausible_reason"`
	Note            string `json:"note"`

	parsedStatus models.Status
	parsedReason models.PlausibleReason
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	reason, err := models.ParsePlausibleReason(strings.TrimSpace(r.PlausibleReason))
	if err != nil {
		return err
	}
	r.Note = strings.TrimSpace(r.Note)
	if status == models.StatusResolved && r.Note == "" {
		return dErrors.New(dErrors.CodeValidation, "resolving a contradiction requires a note")
	}
	r.parsedStatus = status
	r.parsedReason = reason
	return nil
}

// ParsedStatus returns the status parsed during validation.
func (r *TransitionRequest) ParsedStatus() models.Status { return r.parsedStatus }

// ParsedReason returns the plausible reason parsed during validation.
func (r *TransitionRequest) ParsedReason() models.PlausibleReason { return r.parsedReason }
