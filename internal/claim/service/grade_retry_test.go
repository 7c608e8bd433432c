package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"yeto/internal/claim/models"
	"yeto/internal/claim/ports/mocks"
	"yeto/internal/grading"
	"yeto/internal/storage"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

// Version-conflict behavior needs a store that fails on demand, which the
// in-memory store can't simulate. Mocks cover the retry loop here; everything
// else in this package tests against real stores.

func newRetryFixture(t *testing.T) (context.Context, *mocks.MockClaimStore, *mocks.MockCitationStore, *Service) {
	t.Helper()
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockClaimStore(ctrl)
	citations := mocks.NewMockCitationStore(ctrl)

	grader, err := grading.New(grading.DefaultConfig())
	require.NoError(t, err)

	svc := New(claims, citations, grader, storage.NewNoopTxRunner())
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	return ctx, claims, citations, svc
}

func retryClaim(version int64) *models.Claim {
	return &models.Claim{
		ID: domain.NewClaimID(),
		Subject: models.Subject{
			EntityID:  domain.NewEntityID(),
			Indicator: "fuel_imports_mt",
			Period:    "2025-05",
		},
		Value:   1620,
		Unit:    "metric_tons",
		Version: version,
	}
}

func officialCitation(claimID domain.ClaimID, now time.Time) []models.Citation {
	return []models.Citation{{
		ID:          domain.NewCitationID(),
		ClaimID:     claimID,
		SourceID:    "cby-aden-bulletin-2025-05",
		Publisher:   "Central Bank of Yemen (Aden)",
		SourceType:  "official",
		RetrievedAt: now.AddDate(0, 0, -10),
		LicenseOpen: true,
	}}
}

func TestGradeClaim_RetriesOnVersionConflict(t *testing.T) {
	ctx, claims, citations, svc := newRetryFixture(t)
	now := requestcontext.Now(ctx)
	claim := retryClaim(3)
	evidence := officialCitation(claim.ID, now)

	// First pass reads version 3 and loses the race; second pass reads the
	// moved version and lands.
	firstRead := retryClaim(3)
	firstRead.ID = claim.ID
	first := claims.EXPECT().Get(gomock.Any(), claim.ID).Return(firstRead, nil)
	firstWrite := claims.EXPECT().
		UpdateGrade(gomock.Any(), claim.ID, int64(3), gomock.Any(), gomock.Any()).
		Return(sentinel.ErrConflict)

	reread := retryClaim(4)
	reread.ID = claim.ID
	claims.EXPECT().Get(gomock.Any(), claim.ID).Return(reread, nil).After(firstWrite)
	claims.EXPECT().
		UpdateGrade(gomock.Any(), claim.ID, int64(4), gomock.Any(), gomock.Any()).
		Return(nil)

	citations.EXPECT().ListByClaim(gomock.Any(), claim.ID).Return(evidence, nil).Times(2).After(first)

	graded, err := svc.GradeClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), graded.Version)
	assert.NotEmpty(t, graded.Grade)
}

func TestGradeClaim_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx, claims, citations, svc := newRetryFixture(t)
	now := requestcontext.Now(ctx)
	claim := retryClaim(1)
	evidence := officialCitation(claim.ID, now)

	claims.EXPECT().Get(gomock.Any(), claim.ID).
		DoAndReturn(func(context.Context, domain.ClaimID) (*models.Claim, error) {
			c := retryClaim(1)
			c.ID = claim.ID
			return c, nil
		}).AnyTimes()
	citations.EXPECT().ListByClaim(gomock.Any(), claim.ID).Return(evidence, nil).AnyTimes()
	claims.EXPECT().
		UpdateGrade(gomock.Any(), claim.ID, int64(1), gomock.Any(), gomock.Any()).
		Return(sentinel.ErrConflict).Times(4)

	_, err := svc.GradeClaim(ctx, claim.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestGradeClaim_ClaimDeletedUnderneath(t *testing.T) {
	ctx, claims, citations, svc := newRetryFixture(t)
	now := requestcontext.Now(ctx)
	claim := retryClaim(1)

	claims.EXPECT().Get(gomock.Any(), claim.ID).Return(retryClaim(1), nil)
	citations.EXPECT().ListByClaim(gomock.Any(), claim.ID).
		Return(officialCitation(claim.ID, now), nil)
	claims.EXPECT().
		UpdateGrade(gomock.Any(), claim.ID, int64(1), gomock.Any(), gomock.Any()).
		Return(sentinel.ErrNotFound)

	_, err := svc.GradeClaim(ctx, claim.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
