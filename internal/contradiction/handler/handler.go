// Package handler wires contradiction listing and adjudication endpoints to
// the detector service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"yeto/internal/contradiction/models"
	"yeto/internal/contradiction/service"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/httputil"
	"yeto/pkg/requestcontext"
)

// DetectorService detects and adjudicates contradictions.
type DetectorService interface {
	ScanAll(ctx context.Context) (*service.ScanResult, error)
	List(ctx context.Context, entityID domain.EntityID, status models.Status) ([]*models.Record, error)
	Transition(ctx context.Context, id domain.ContradictionID, to models.Status, reason models.PlausibleReason, note string) (*models.Record, error)
}

// Handler exposes the contradiction module over HTTP.
type Handler struct {
	detector DetectorService
	logger   *slog.Logger
}

// New constructs a contradiction handler.
func New(detector DetectorService, logger *slog.Logger) *Handler {
	return &Handler{detector: detector, logger: logger}
}

// Register mounts public read endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/contradictions", h.HandleList)
}

// RegisterReviewer mounts adjudication endpoints; the router wraps these in
// reviewer authentication.
func (h *Handler) RegisterReviewer(r chi.Router) {
	r.Post("/contradictions/scan", h.HandleScan)
	r.Post("/contradictions/{contradictionID}/transition", h.HandleTransition)
}

// HandleList handles GET /contradictions?entity_id=&status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var entityID domain.EntityID
	if raw := strings.TrimSpace(r.URL.Query().Get("entity_id")); raw != "" {
		id, err := domain.ParseEntityID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entity id"))
			return
		}
		entityID = id
	}
	var status models.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = parsed
	}

	records, err := h.detector.List(ctx, entityID, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleScan handles POST /contradictions/scan.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	result, err := h.detector.ScanAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "contradiction scan failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "contradiction scan requested",
		"request_id", requestID,
		"subjects", result.SubjectsScanned,
		"detections", result.Detections,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ScanResponse{
		SubjectsScanned: result.SubjectsScanned,
		PairsCompared:   result.PairsCompared,
		Detections:      result.Detections,
	})
}

// HandleTransition handles POST /contradictions/{contradictionID}/transition.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseContradictionID(chi.URLParam(r, "contradictionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid contradiction id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.detector.Transition(ctx, id, req.ParsedStatus(), req.ParsedReason(), req.Note)
	if err != nil {
		h.logger.ErrorContext(ctx, "contradiction transition failed",
			"request_id", requestID,
			"contradiction_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}
