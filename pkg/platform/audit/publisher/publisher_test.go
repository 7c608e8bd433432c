package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "yeto/pkg/platform/audit"
	"yeto/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Subject: "entity-1",
		Action:  string(audit.EventEntityCreated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "entity-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventEntityCreated), events[0].Action)
	assert.Equal(t, audit.CategoryProvenance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	event := audit.Event{
		Subject: "case-1",
		Action:  string(audit.EventReviewCaseOpened),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Close flushes the buffer before returning.
	pub.Close()

	events, err := store.List(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryAdjudication, events[0].Category)
}

func TestPublisher_CategoryDerivation(t *testing.T) {
	assert.Equal(t, audit.CategoryProvenance, audit.EventClaimGraded.Category())
	assert.Equal(t, audit.CategoryAdjudication, audit.EventMergeRejected.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventEntityMatched.Category())
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown").Category())
}
