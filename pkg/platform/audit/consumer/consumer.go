// Package consumer materializes the Kafka audit stream into the audit_events
// table so the query path (Store.List) works without replaying Kafka.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "yeto/pkg/platform/audit"
)

// Materializer persists consumed audit events. Implemented by the postgres
// store's AppendWithID (idempotent on event id).
type Materializer interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Consumer reads the audit topic and writes each event through the
// materializer.
type Consumer struct {
	client *kgo.Client
	store  Materializer
	logger *slog.Logger
}

func New(client *kgo.Client, store Materializer, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, store: store, logger: logger}
}

// wirePayload mirrors the outbox payload structure.
type wirePayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason"`
	Decision  string `json:"Decision"`
	ActorID   string `json:"ActorID"`
	RequestID string `json:"RequestID"`
}

// Run polls the audit topic until ctx is done. Offsets are committed by the
// consumer group after materialization; duplicates are tolerated because
// AppendWithID is idempotent.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.logger.ErrorContext(ctx, "audit fetch error", "topic", fe.Topic, "error", fe.Err)
			}
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if err := c.materialize(ctx, record); err != nil {
				c.logger.ErrorContext(ctx, "audit materialize failed",
					"offset", record.Offset,
					"error", err,
				)
			}
		})
	}
}

func (c *Consumer) materialize(ctx context.Context, record *kgo.Record) error {
	var payload wirePayload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		return fmt.Errorf("unmarshal audit payload: %w", err)
	}

	eventID, err := uuid.Parse(payload.ID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	if err != nil {
		ts = record.Timestamp
	}

	return c.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.EventCategory(payload.Category),
		Timestamp: ts,
		Subject:   payload.Subject,
		Action:    payload.Action,
		Reason:    payload.Reason,
		Decision:  payload.Decision,
		ActorID:   payload.ActorID,
		RequestID: payload.RequestID,
	})
}
