// Package service implements contradiction detection and adjudication.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	claimmodels "yeto/internal/claim/models"
	"yeto/internal/contradiction"
	"yeto/internal/contradiction/models"
	"yeto/internal/contradiction/ports"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

// maxDisputeRetries bounds the version retry loop when flipping a claim's
// conflict status under a concurrent regrade.
const maxDisputeRetries = 3

// Detector scans claims sharing a subject for sourced values that disagree
// beyond the configured variance thresholds. Detections are an audit trail:
// one record per claim pair, never deleted, only transitioned.
type Detector struct {
	cfg       contradiction.Config
	records   ports.ContradictionStore
	claims    ports.ClaimReader
	citations ports.CitationReader
	grader    ports.Grader

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(d *Detector) {
		d.auditPublisher = publisher
	}
}

// New constructs a Detector.
func New(
	cfg contradiction.Config,
	records ports.ContradictionStore,
	claims ports.ClaimReader,
	citations ports.CitationReader,
	grader ports.Grader,
	opts ...Option,
) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:       cfg,
		records:   records,
		claims:    claims,
		citations: citations,
		grader:    grader,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ScanResult summarizes one detection pass.
type ScanResult struct {
	SubjectsScanned int
	PairsCompared   int
	Detections      int
}

// ScanAll runs detection over every subject with claims. Subjects are
// independent, so the scan fans out; writes serialize per claim through the
// version-guarded conflict updates.
func (d *Detector) ScanAll(ctx context.Context) (*ScanResult, error) {
	subjects, err := d.claims.ListSubjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list claim subjects")
	}

	results := make([]ScanResult, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.ScanConcurrency)
	for i, subject := range subjects {
		g.Go(func() error {
			r, err := d.ScanSubject(gctx, subject)
			if err != nil {
				return fmt.Errorf("subject %s: %w", subject.Key(), err)
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := ScanResult{SubjectsScanned: len(subjects)}
	for _, r := range results {
		total.PairsCompared += r.PairsCompared
		total.Detections += r.Detections
	}
	if d.logger != nil {
		d.logger.InfoContext(ctx, "contradiction scan complete",
			slog.Int("subjects", total.SubjectsScanned),
			slog.Int("pairs", total.PairsCompared),
			slog.Int("detections", total.Detections))
	}
	return &total, nil
}

// ScanSubject compares every pair of live, sourced claims for one subject.
// Superseded claims are historical vintages and do not contradict their
// successors; claims with no active citation have no source to attribute a
// disagreement to and are never compared.
func (d *Detector) ScanSubject(ctx context.Context, subject claimmodels.Subject) (*ScanResult, error) {
	all, err := d.claims.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list claims")
	}

	var live []*claimmodels.Claim
	sources := make(map[domain.ClaimID][]string)
	for _, c := range all {
		if !c.SupersededBy.IsNil() {
			continue
		}
		ids, err := d.claimSources(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		live = append(live, c)
		sources[c.ID] = ids
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID.String() < live[j].ID.String() })

	result := &ScanResult{SubjectsScanned: 1}
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			a, b := live[i], live[j]
			if a.Unit != b.Unit {
				continue
			}
			result.PairsCompared++

			variance := relativeVariance(a.Value, b.Value)
			if variance < d.cfg.ModerateVariance {
				continue
			}
			if err := d.recordDetection(ctx, subject, a, b, sources[a.ID], sources[b.ID], variance); err != nil {
				return nil, err
			}
			result.Detections++
		}
	}
	return result, nil
}

// claimSources returns the sorted, deduplicated source ids of a claim's
// active citations.
func (d *Detector) claimSources(ctx context.Context, id domain.ClaimID) ([]string, error) {
	citations, err := d.citations.ListByClaim(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list citations")
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range citations {
		if !c.Active() {
			continue
		}
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		ids = append(ids, c.SourceID)
	}
	sort.Strings(ids)
	return ids, nil
}

// relativeVariance is |a-b| / max(|a|,|b|). Two zeros agree perfectly; a zero
// against a non-zero is total disagreement.
func relativeVariance(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(a-b) / denom
}

func (d *Detector) recordDetection(ctx context.Context, subject claimmodels.Subject, a, b *claimmodels.Claim, sourcesA, sourcesB []string, variance float64) error {
	severity := models.SeverityModerate
	if variance >= d.cfg.HighVariance {
		severity = models.SeverityHigh
	}

	record := &models.Record{
		ID:       domain.NewContradictionID(),
		Subject:  subject,
		ClaimA:   a.ID,
		ClaimB:   b.ID,
		ValueA:   a.Value,
		ValueB:   b.Value,
		SourcesA: sourcesA,
		SourcesB: sourcesB,
		Variance: variance,
		Severity: severity,
		Status:   models.StatusDetected,
	}
	stored, err := d.records.Upsert(ctx, record)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store contradiction")
	}

	// Only a fresh detection flips claims and emits audit events;
	// re-detecting a known pair just refreshes its values.
	if stored.ID != record.ID {
		return nil
	}

	d.logAudit(ctx, audit.EventContradictionDetected, stored.ID.String(),
		fmt.Sprintf("%s reports %g, %s reports %g, disagreeing by %.0f%% for %s",
			strings.Join(sourcesA, "+"), a.Value, strings.Join(sourcesB, "+"), b.Value, variance*100, subject.Key()),
		string(severity))
	if d.logger != nil {
		d.logger.WarnContext(ctx, "contradiction detected",
			slog.String("contradiction_id", stored.ID.String()),
			slog.String("subject", subject.Key()),
			slog.Float64("variance", variance),
			slog.String("severity", string(severity)))
	}

	for _, claim := range []*claimmodels.Claim{a, b} {
		if err := d.disputeClaim(ctx, claim.ID); err != nil {
			return err
		}
	}
	return nil
}

// disputeClaim flips one claim to disputed and regrades it so the cap shows
// up immediately rather than on the next unrelated grading pass.
func (d *Detector) disputeClaim(ctx context.Context, id domain.ClaimID) error {
	for attempt := 0; ; attempt++ {
		claim, err := d.claims.Get(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load claim")
		}
		if claim.ConflictStatus == domain.ConflictDisputed {
			return nil
		}

		err = d.claims.UpdateConflict(ctx, id, claim.Version, domain.ConflictDisputed)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < maxDisputeRetries {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to mark claim disputed")
	}

	d.logAudit(ctx, audit.EventClaimDisputed, id.String(), "conflicting sourced value detected", "")
	if _, err := d.grader.GradeClaim(ctx, id); err != nil {
		return err
	}
	return nil
}

// List returns contradiction records, optionally filtered by subject entity
// and status.
func (d *Detector) List(ctx context.Context, entityID domain.EntityID, status models.Status) ([]*models.Record, error) {
	records, err := d.records.List(ctx, entityID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list contradictions")
	}
	return records, nil
}

// Transition moves a record forward through its status machine. Resolving
// appends a note and, when both claims carry no other open contradiction,
// settles their conflict status so grades recover on regrade.
func (d *Detector) Transition(ctx context.Context, id domain.ContradictionID, to models.Status, reason models.PlausibleReason, note string) (*models.Record, error) {
	reviewer := requestcontext.ReviewerID(ctx)
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "contradiction transitions require a reviewer identity")
	}

	record, err := d.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contradiction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load contradiction")
	}
	if !record.Status.CanTransition(to) {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"cannot transition contradiction from %s to %s", record.Status, to)
	}

	record.Status = to
	if reason != "" {
		record.PlausibleReason = reason
	}
	if note != "" {
		record.AppendNote(note, requestcontext.Now(ctx), reviewer)
	}
	if err := d.records.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update contradiction")
	}

	d.logAudit(ctx, audit.EventContradictionTransitioned, record.ID.String(), note, string(to))
	if d.logger != nil {
		d.logger.InfoContext(ctx, "contradiction transitioned",
			slog.String("contradiction_id", record.ID.String()),
			slog.String("status", string(to)),
			slog.String("reviewer", reviewer))
	}

	if to == models.StatusResolved {
		for _, claimID := range []domain.ClaimID{record.ClaimA, record.ClaimB} {
			if err := d.settleClaim(ctx, claimID); err != nil {
				return nil, err
			}
		}
	}
	return record, nil
}

// settleClaim moves a disputed claim to resolved unless another open
// contradiction still involves it.
func (d *Detector) settleClaim(ctx context.Context, id domain.ClaimID) error {
	claim, err := d.claims.Get(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load claim")
	}
	if claim.ConflictStatus != domain.ConflictDisputed {
		return nil
	}

	open, err := d.openContradictions(ctx, claim.Subject.EntityID, id)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	for attempt := 0; ; attempt++ {
		err = d.claims.UpdateConflict(ctx, id, claim.Version, domain.ConflictResolved)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < maxDisputeRetries {
			claim, err = d.claims.Get(ctx, id)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load claim")
			}
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to settle claim conflict")
	}

	if _, err := d.grader.GradeClaim(ctx, id); err != nil {
		return err
	}
	return nil
}

func (d *Detector) openContradictions(ctx context.Context, entityID domain.EntityID, claimID domain.ClaimID) (bool, error) {
	for _, status := range []models.Status{models.StatusDetected, models.StatusUnderReview} {
		records, err := d.records.List(ctx, entityID, status)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list contradictions")
		}
		for _, r := range records {
			if r.ClaimA == claimID || r.ClaimB == claimID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *Detector) logAudit(ctx context.Context, action audit.AuditEvent, subject, reason, decision string) {
	if d.auditPublisher == nil {
		return
	}
	_ = d.auditPublisher.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(action),
		Reason:    reason,
		Decision:  decision,
		ActorID:   requestcontext.ReviewerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
}
