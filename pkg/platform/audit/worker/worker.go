// Package worker moves audit events from the hot path to durable storage and
// to Kafka. Domain services only ever block on a channel send; persistence and
// publishing latency never shows up in request handling or sweep runs.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "credready/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them via the
// configured store.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelSink implements audit.Sink over the worker's inbox. Record blocks
// when the inbox is full rather than dropping: audit entries are a hard
// requirement, not telemetry.
type ChannelSink struct {
	inbox chan<- audit.Event
	now   func() time.Time
}

func NewChannelSink(inbox chan<- audit.Event) *ChannelSink {
	return &ChannelSink{inbox: inbox, now: time.Now}
}

func (s *ChannelSink) Record(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OutboxPublisher drains the postgres outbox and publishes each row to Kafka.
// Rows are deleted only after the produce is acknowledged, so a crash between
// produce and delete yields duplicates, never loss. Consumers must
// de-duplicate on payload id.
type OutboxPublisher struct {
	db       *sql.DB
	client   *kgo.Client
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewOutboxPublisher(db *sql.DB, client *kgo.Client, logger *slog.Logger) *OutboxPublisher {
	return &OutboxPublisher{
		db:       db,
		client:   client,
		logger:   logger,
		interval: 5 * time.Second,
		batch:    100,
	}
}

func (p *OutboxPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (p *OutboxPublisher) drainOnce(ctx context.Context) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		ORDER BY created_at ASC
		LIMIT $1
	`, p.batch)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	type outboxRow struct {
		id          string
		aggregateID string
		eventType   string
		payload     []byte
	}
	var pending []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.aggregateID, &r.eventType, &r.payload); err != nil {
			return fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		record := &kgo.Record{
			Key:   []byte(r.aggregateID),
			Value: r.payload,
		}
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit event %s: %w", r.id, err)
		}
		if _, err := p.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, r.id); err != nil {
			return fmt.Errorf("delete outbox row %s: %w", r.id, err)
		}
	}
	return nil
}
