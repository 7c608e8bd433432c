package provenance

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/httputil"
	"yeto/pkg/requestcontext"
)

// Handler exposes the enforcement rule over HTTP: a displayability probe for
// display collaborators and a sweep trigger for operators.
type Handler struct {
	checker *Checker
	logger  *slog.Logger
}

// NewHandler constructs a provenance handler.
func NewHandler(checker *Checker, logger *slog.Logger) *Handler {
	return &Handler{checker: checker, logger: logger}
}

// Register mounts the public displayability probe.
func (h *Handler) Register(r chi.Router) {
	r.Get("/entities/{entityID}/displayable", h.HandleDisplayable)
}

// RegisterReviewer mounts the sweep trigger; the router wraps it in reviewer
// authentication.
func (h *Handler) RegisterReviewer(r chi.Router) {
	r.Post("/provenance/sweep", h.HandleSweep)
}

// HandleDisplayable handles GET /entities/{entityID}/displayable.
func (h *Handler) HandleDisplayable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := domain.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entity id"))
		return
	}

	ok, err := h.checker.Displayable(ctx, entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entity_id":   entityID.String(),
		"displayable": ok,
	})
}

// violationResponse is the wire shape of one sweep finding.
type violationResponse struct {
	ClaimID   string `json:"claim_id"`
	EntityID  string `json:"entity_id"`
	Indicator string `json:"indicator"`
	Period    string `json:"period"`
	Grade     string `json:"grade"`
}

// HandleSweep handles POST /provenance/sweep.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	report, err := h.checker.Sweep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "provenance sweep failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	violations := make([]violationResponse, 0, len(report.Violations))
	for _, v := range report.Violations {
		violations = append(violations, violationResponse{
			ClaimID:   v.ClaimID.String(),
			EntityID:  v.Subject.EntityID.String(),
			Indicator: v.Subject.Indicator,
			Period:    v.Subject.Period,
			Grade:     v.Grade.String(),
		})
	}

	h.logger.InfoContext(ctx, "provenance sweep requested",
		"request_id", requestID,
		"claims_checked", report.ClaimsChecked,
		"violations", len(violations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"claims_checked": report.ClaimsChecked,
		"violations":     violations,
	})
}
