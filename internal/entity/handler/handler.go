// Package handler wires entity resolution and review endpoints to their
// services.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yeto/internal/entity/models"
	"yeto/internal/entity/service"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/httputil"
	"yeto/pkg/requestcontext"
)

// ResolverService resolves raw names to entities.
type ResolverService interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (*models.ResolutionResult, error)
}

// ReviewService adjudicates review cases and manages entity lifecycle.
type ReviewService interface {
	ListCases(ctx context.Context, status models.ReviewStatus) ([]*models.ReviewCase, error)
	ResolveCase(ctx context.Context, caseID domain.ReviewCaseID, decision models.ReviewDecision) (*models.Entity, error)
	GetEntity(ctx context.Context, id domain.EntityID) (*models.Entity, error)
	Merge(ctx context.Context, sourceID, targetID domain.EntityID, note string) (*models.Entity, error)
	Deprecate(ctx context.Context, id domain.EntityID, note string) (*models.Entity, error)
}

// Handler exposes the entity module over HTTP.
type Handler struct {
	resolver ResolverService
	review   ReviewService
	logger   *slog.Logger
}

// New constructs an entity handler with its dependencies.
func New(resolver ResolverService, review ReviewService, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, review: review, logger: logger}
}

// Register mounts public resolution endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/resolve", h.HandleResolve)
	r.Get("/entities/{entityID}", h.HandleGetEntity)
}

// RegisterReviewer mounts adjudication endpoints; the router wraps these in
// reviewer authentication.
func (h *Handler) RegisterReviewer(r chi.Router) {
	r.Get("/review-cases", h.HandleListReviewCases)
	r.Post("/review-cases/{caseID}/decision", h.HandleDecideReviewCase)
	r.Post("/entities/{entityID}/merge", h.HandleMerge)
	r.Post("/entities/{entityID}/deprecate", h.HandleDeprecate)
}

// HandleResolve handles POST /resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.resolver.Resolve(ctx, service.ResolveRequest{
		Name:           req.Name,
		ExternalSystem: req.ExternalSystem,
		ExternalID:     req.ExternalID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "resolution failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "name resolved",
		"request_id", requestID,
		"outcome", result.Outcome,
		"match_type", result.MatchType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResolution(result))
}

// HandleGetEntity handles GET /entities/{entityID}.
func (h *Handler) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := domain.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entity id"))
		return
	}

	e, err := h.review.GetEntity(ctx, entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntity(e))
}

// HandleListReviewCases handles GET /review-cases?status=pending.
func (h *Handler) HandleListReviewCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusParam := r.URL.Query().Get("status")
	if statusParam == "" {
		statusParam = string(models.ReviewPending)
	}
	status, err := models.ParseReviewStatus(statusParam)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cases, err := h.review.ListCases(ctx, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReviewCases(cases))
}

// HandleDecideReviewCase handles POST /review-cases/{caseID}/decision.
func (h *Handler) HandleDecideReviewCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caseID, err := domain.ParseReviewCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid review case id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.review.ResolveCase(ctx, caseID, req.ParsedDecision())
	if err != nil {
		h.logger.ErrorContext(ctx, "review decision failed",
			"request_id", requestID,
			"case_id", caseID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "review case decided",
		"request_id", requestID,
		"case_id", caseID,
		"approved", req.Approve,
	)
	if entity == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntity(entity))
}

// HandleMerge handles POST /entities/{entityID}/merge.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sourceID, err := domain.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entity id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	target, err := h.review.Merge(ctx, sourceID, req.ParsedTarget(), req.Note)
	if err != nil {
		h.logger.ErrorContext(ctx, "merge failed",
			"request_id", requestID,
			"source_id", sourceID,
			"target_id", req.TargetEntityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntity(target))
}

// HandleDeprecate handles POST /entities/{entityID}/deprecate.
func (h *Handler) HandleDeprecate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, err := domain.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entity id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DeprecateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	e, err := h.review.Deprecate(ctx, entityID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntity(e))
}
