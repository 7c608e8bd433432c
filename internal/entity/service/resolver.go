// Package service orchestrates entity resolution and review adjudication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"yeto/internal/entity/metrics"
	"yeto/internal/entity/models"
	"yeto/internal/entity/ports"
	"yeto/internal/normalize"
	"yeto/internal/regime"
	"yeto/internal/registry"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultCacheCleanup = 10 * time.Minute
)

// Ladder confidences. Canonical matches outrank live-store matches because
// the registry is curated; live entries may have been created from a single
// reviewer decision.
const (
	confCanonicalExact = 1.0
	confCanonicalAlias = 0.95
	confCanonicalExtID = 1.0
	confLiveExact      = 0.9
	confLiveAlias      = 0.85
	confLiveExtID      = 1.0
	confRegimeGuard    = 0.3
	confFallback       = 0.5
)

// ResolveRequest carries one raw name from an ingestion job, optionally with
// an external identifier pair.
type ResolveRequest struct {
	Name           string
	ExternalSystem string
	ExternalID     string
}

// Resolver maps raw source-document names onto entities. It walks a strict
// priority ladder: canonical registry matches first, then the live store,
// then the regime-split guard, then a review-case fallback. It never guesses:
// an unmatched name that could denote either government's institution is
// always escalated to a human.
type Resolver struct {
	registry *registry.Registry
	entities ports.EntityStore
	reviews  ports.ReviewCaseStore
	locks    ports.NameLocker
	txRunner ports.TxRunner

	cache          *cache.Cache
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) ResolverOption {
	return func(r *Resolver) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithCacheTTL bounds how long a resolved name sticks to an entity id before
// the ladder is walked again.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache.New(ttl, 2*ttl)
	}
}

// NewResolver constructs a Resolver.
func NewResolver(
	reg *registry.Registry,
	entities ports.EntityStore,
	reviews ports.ReviewCaseStore,
	locks ports.NameLocker,
	txRunner ports.TxRunner,
	opts ...ResolverOption,
) *Resolver {
	r := &Resolver{
		registry: reg,
		entities: entities,
		reviews:  reviews,
		locks:    locks,
		txRunner: txRunner,
		cache:    cache.New(defaultCacheTTL, defaultCacheCleanup),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// cachedMatch is the resolver cache value: enough to replay a match without
// touching the store.
type cachedMatch struct {
	entityID   domain.EntityID
	matchType  models.MatchType
	confidence float64
}

// Resolve walks the resolution ladder for one raw name. The first hit wins.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*models.ResolutionResult, error) {
	start := time.Now()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity name must not be empty")
	}
	if (req.ExternalSystem == "") != (req.ExternalID == "") {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"external system and external id must be supplied together")
	}
	normalized := normalize.Name(name)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity name contains no resolvable characters")
	}

	result, err := r.resolve(ctx, name, normalized, req.ExternalSystem, req.ExternalID)
	if err != nil {
		return nil, err
	}

	r.metrics.IncrementResolution(string(result.Outcome), string(result.MatchType))
	r.metrics.ObserveResolveLatency(time.Since(start))
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, name, normalized, extSystem, extID string) (*models.ResolutionResult, error) {
	if hit, ok := r.cache.Get(normalized); ok {
		m := hit.(cachedMatch)
		r.metrics.RecordCacheHit()
		return &models.ResolutionResult{
			Outcome:    models.OutcomeMatched,
			EntityID:   m.entityID,
			MatchType:  m.matchType,
			Confidence: m.confidence,
		}, nil
	}
	r.metrics.RecordCacheMiss()

	// Canonical registry rungs.
	if entry, ok := r.registry.FindByName(normalized); ok {
		return r.materializeCanonical(ctx, entry, models.MatchExact, confCanonicalExact)
	}
	if entry, ok := r.registry.FindByAlias(normalized); ok {
		return r.materializeCanonical(ctx, entry, models.MatchAlias, confCanonicalAlias)
	}
	if extSystem != "" {
		if entry, ok := r.registry.FindByExternalID(extSystem, extID); ok {
			return r.materializeCanonical(ctx, entry, models.MatchExternalID, confCanonicalExtID)
		}
	}

	// Live-store rungs. Misses fall through; anything else is a store fault
	// and must surface as retryable, never as "no match".
	if result, err := r.liveLookup(ctx, normalized, extSystem, extID); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	// Regime-split guard. A name carrying national-institution vocabulary
	// with no match above must not auto-create: the same institution exists
	// in duplicate under rival governments, and only a human can say which
	// one this name denotes.
	if regime.RequiresSplit(name) {
		return r.openReviewCase(ctx, name, normalized, models.ReasonAmbiguousRegimeSplit, confRegimeGuard,
			"determine which government's institution this name denotes, then link or create",
			"name matches regime-split vocabulary; no canonical, alias, or external-reference match")
	}

	return r.openReviewCase(ctx, name, normalized, models.ReasonNoCanonicalMatch, confFallback,
		"verify the organization exists, then create an entity or link an existing one",
		"no canonical, alias, or external-reference match")
}

func (r *Resolver) liveLookup(ctx context.Context, normalized, extSystem, extID string) (*models.ResolutionResult, error) {
	e, err := r.entities.FindByNormalizedName(ctx, normalized)
	if err == nil {
		return r.matched(ctx, e, models.MatchExact, confLiveExact, normalized), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "entity store lookup failed")
	}

	e, err = r.entities.FindByAlias(ctx, normalized)
	if err == nil {
		return r.matched(ctx, e, models.MatchAlias, confLiveAlias, normalized), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "entity store lookup failed")
	}

	if extSystem != "" {
		e, err = r.entities.FindByExternalRef(ctx, extSystem, extID)
		if err == nil {
			return r.matched(ctx, e, models.MatchExternalID, confLiveExtID, normalized), nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "entity store lookup failed")
		}
	}
	return nil, nil
}

func (r *Resolver) matched(ctx context.Context, e *models.Entity, matchType models.MatchType, confidence float64, normalized string) *models.ResolutionResult {
	// A merged entity redirects to its absorber so stale aliases keep working.
	entityID := e.ID
	if e.Status == models.StatusMerged && !e.MergedInto.IsNil() {
		entityID = e.MergedInto
	}

	r.cache.SetDefault(normalized, cachedMatch{entityID: entityID, matchType: matchType, confidence: confidence})
	r.logAudit(ctx, audit.EventEntityMatched, entityID.String(), string(matchType), "")

	return &models.ResolutionResult{
		Outcome:    models.OutcomeMatched,
		EntityID:   entityID,
		MatchType:  matchType,
		Confidence: confidence,
	}
}

// materializeCanonical returns the live entity for a canonical registry
// entry, creating it on first sight. Creation is serialized per canonical
// name so two ingestion jobs cannot instantiate the same entry twice.
func (r *Resolver) materializeCanonical(ctx context.Context, entry *registry.Entry, matchType models.MatchType, confidence float64) (*models.ResolutionResult, error) {
	canonicalKey := normalize.Name(entry.NameEn)

	release, err := r.locks.Acquire(ctx, canonicalKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire name lock")
	}
	defer release()

	existing, err := r.entities.FindByNormalizedName(ctx, canonicalKey)
	if err == nil {
		r.cache.SetDefault(canonicalKey, cachedMatch{entityID: existing.ID, matchType: matchType, confidence: confidence})
		r.logAudit(ctx, audit.EventEntityMatched, existing.ID.String(), string(matchType), "")
		return &models.ResolutionResult{
			Outcome:    models.OutcomeMatched,
			EntityID:   existing.ID,
			MatchType:  matchType,
			Confidence: confidence,
		}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "entity store lookup failed")
	}

	// Registry curation is itself a human decision, so a curated "both" tag
	// on a split-prone kind enters the store as reviewed.
	regimeStatus := domain.RegimeStatusTagged
	if entry.Kind.SplitProne() && entry.RegimeTag == domain.RegimeBoth {
		regimeStatus = domain.RegimeStatusReviewed
	}
	e := &models.Entity{
		ID:           domain.NewEntityID(),
		NameEn:       entry.NameEn,
		NameAr:       entry.NameAr,
		Kind:         entry.Kind,
		RegimeTag:    entry.RegimeTag,
		RegimeStatus: regimeStatus,
		Status:       models.StatusActive,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	err = r.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.entities.Create(ctx, e); err != nil {
			return err
		}
		for _, alias := range entry.Aliases {
			a := models.Alias{EntityID: e.ID, Alias: alias, Source: "canonical", Confidence: 1}
			if err := r.entities.AddAlias(ctx, a); err != nil {
				return err
			}
		}
		for system, externalID := range entry.ExternalIDs {
			ref := models.ExternalReference{EntityID: e.ID, System: system, ExternalID: externalID}
			if err := r.entities.AddExternalRef(ctx, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race despite the lock (e.g. lock expiry); the winner's
			// entity is what we want.
			if existing, lookupErr := r.entities.FindByNormalizedName(ctx, canonicalKey); lookupErr == nil {
				return &models.ResolutionResult{
					Outcome:    models.OutcomeMatched,
					EntityID:   existing.ID,
					MatchType:  matchType,
					Confidence: confidence,
				}, nil
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create canonical entity")
	}

	r.cache.SetDefault(canonicalKey, cachedMatch{entityID: e.ID, matchType: matchType, confidence: confidence})
	r.logAudit(ctx, audit.EventEntityCreated, e.ID.String(), "canonical registry entry "+entry.Code, "")
	if r.logger != nil {
		r.logger.InfoContext(ctx, "canonical entity materialized",
			"entity_id", e.ID, "code", entry.Code, "regime_tag", e.RegimeTag)
	}

	return &models.ResolutionResult{
		Outcome:    models.OutcomeCreated,
		EntityID:   e.ID,
		MatchType:  matchType,
		Confidence: confidence,
	}, nil
}

func (r *Resolver) openReviewCase(ctx context.Context, name, normalized string, reason models.ReviewReason, confidence float64, proposedAction, evidenceSummary string) (*models.ResolutionResult, error) {
	rc := &models.ReviewCase{
		ID:              domain.NewReviewCaseID(),
		CandidateName:   name,
		NormalizedName:  normalized,
		Reason:          reason,
		ProposedAction:  proposedAction,
		EvidenceSummary: evidenceSummary,
		Status:          models.ReviewPending,
	}
	stored, err := r.reviews.UpsertPending(ctx, rc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "open review case")
	}

	// Upsert may return a pre-existing case; only the first open is audited.
	if stored.ID == rc.ID {
		r.metrics.IncrementReviewCase("opened", string(reason))
		r.logAudit(ctx, audit.EventReviewCaseOpened, stored.ID.String(), string(reason), "")
		if r.logger != nil {
			r.logger.InfoContext(ctx, "review case opened",
				"case_id", stored.ID, "name", name, "reason", reason)
		}
	}

	return &models.ResolutionResult{
		Outcome:      models.OutcomeNeedsReview,
		MatchType:    models.MatchNew,
		Confidence:   confidence,
		ReviewCaseID: stored.ID,
		Reason:       reason,
	}, nil
}

// InvalidateName drops a cached resolution, e.g. after a review decision or
// merge changed what the name resolves to.
func (r *Resolver) InvalidateName(normalized string) {
	r.cache.Delete(normalized)
}

// FlushCache drops every cached resolution.
func (r *Resolver) FlushCache() {
	r.cache.Flush()
}

func (r *Resolver) logAudit(ctx context.Context, action audit.AuditEvent, subject, reason, decision string) {
	if r.auditPublisher == nil {
		return
	}
	_ = r.auditPublisher.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(action),
		Reason:    reason,
		Decision:  decision,
		ActorID:   requestcontext.ReviewerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
}
