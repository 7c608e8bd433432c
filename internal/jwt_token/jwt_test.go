package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewerTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-key", "yeto", "yeto-review")

	token, err := svc.GenerateReviewerToken("reviewer-1", "adjudicator", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims.ReviewerID)
	assert.Equal(t, "adjudicator", claims.Role)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-key", "yeto", "yeto-review")

	token, err := svc.GenerateReviewerToken("reviewer-1", "adjudicator", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuer := NewJWTService("key-a", "yeto", "yeto-review")
	verifier := NewJWTService("key-b", "yeto", "yeto-review")

	token, err := issuer.GenerateReviewerToken("reviewer-1", "adjudicator", time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}
