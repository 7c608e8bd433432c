package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/httputil"
	"yeto/pkg/requestcontext"
)

// TokenValidator validates reviewer tokens and returns the reviewer identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ReviewerClaims, error)
}

// ReviewerClaims is what the middleware needs from a validated token.
type ReviewerClaims struct {
	ReviewerID string
	Role       string
}

// RequireReviewer guards adjudication endpoints (review-case decisions,
// contradiction status transitions). Resolution and read endpoints are open to
// in-process collaborators and do not pass through this middleware.
func RequireReviewer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing authorization header"))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "reviewer token rejected",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid reviewer token"))
				return
			}

			ctx = requestcontext.WithReviewerID(ctx, claims.ReviewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
