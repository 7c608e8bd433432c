// Package handler wires claim ingestion, evidence, and grading endpoints to
// the claim service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/httputil"
	"yeto/pkg/requestcontext"
)

// ClaimService owns the claim lifecycle.
type ClaimService interface {
	Ingest(ctx context.Context, claim *models.Claim) (*models.Claim, error)
	Get(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	AddCitation(ctx context.Context, citation *models.Citation) (*models.Citation, error)
	ArchiveCitation(ctx context.Context, claimID domain.ClaimID, citationID domain.CitationID) error
	GradeClaim(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	GetGrade(ctx context.Context, id domain.ClaimID) (domain.Grade, string, error)
	Supersede(ctx context.Context, oldID domain.ClaimID, replacement *models.Claim) (*models.Claim, error)
}

// Handler exposes the claim module over HTTP.
type Handler struct {
	claims ClaimService
	logger *slog.Logger
}

// New constructs a claim handler.
func New(claims ClaimService, logger *slog.Logger) *Handler {
	return &Handler{claims: claims, logger: logger}
}

// Register mounts claim endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.HandleIngest)
	r.Get("/claims/{claimID}", h.HandleGetClaim)
	r.Post("/claims/{claimID}/citations", h.HandleAddCitation)
	r.Delete("/claims/{claimID}/citations/{citationID}", h.HandleArchiveCitation)
	r.Post("/claims/{claimID}/grade", h.HandleGradeClaim)
	r.Get("/claims/{claimID}/grade", h.HandleGetGrade)
	r.Post("/claims/{claimID}/supersede", h.HandleSupersede)
}

func claimIDParam(r *http.Request) (domain.ClaimID, error) {
	id, err := domain.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		return domain.ClaimID{}, dErrors.New(dErrors.CodeValidation, "invalid claim id")
	}
	return id, nil
}

// HandleIngest handles POST /claims.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ClaimBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	claim, err := h.claims.Ingest(ctx, req.ParsedClaim())
	if err != nil {
		h.logger.ErrorContext(ctx, "claim ingestion failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "claim ingested",
		"request_id", requestID,
		"claim_id", claim.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromClaim(claim))
}

// HandleGetClaim handles GET /claims/{claimID}.
func (h *Handler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.claims.Get(ctx, claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaim(claim))
}

// HandleAddCitation handles POST /claims/{claimID}/citations.
func (h *Handler) HandleAddCitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CitationBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	citation, err := h.claims.AddCitation(ctx, req.Citation(claimID))
	if err != nil {
		h.logger.ErrorContext(ctx, "citation intake failed",
			"request_id", requestID,
			"claim_id", claimID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCitation(citation))
}

// HandleArchiveCitation handles DELETE /claims/{claimID}/citations/{citationID}.
// Citations are never deleted; archival removes them from evidence counts.
func (h *Handler) HandleArchiveCitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	citationID, err := domain.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid citation id"))
		return
	}

	if err := h.claims.ArchiveCitation(ctx, claimID, citationID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// HandleGradeClaim handles POST /claims/{claimID}/grade.
func (h *Handler) HandleGradeClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.claims.GradeClaim(ctx, claimID)
	if err != nil {
		h.logger.ErrorContext(ctx, "grading failed",
			"request_id", requestID,
			"claim_id", claimID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaim(claim))
}

// HandleGetGrade handles GET /claims/{claimID}/grade. Reads never regrade.
func (h *Handler) HandleGetGrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grade, explanation, err := h.claims.GetGrade(ctx, claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GradeResponse{
		ClaimID:     claimID.String(),
		Grade:       grade.String(),
		Explanation: explanation,
		Displayable: grade.Displayable(),
	})
}

// HandleSupersede handles POST /claims/{claimID}/supersede.
func (h *Handler) HandleSupersede(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	claimID, err := claimIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SupersedeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	replacement, err := h.claims.Supersede(ctx, claimID, req.Replacement.ParsedClaim())
	if err != nil {
		h.logger.ErrorContext(ctx, "supersession failed",
			"request_id", requestID,
			"claim_id", claimID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromClaim(replacement))
}
