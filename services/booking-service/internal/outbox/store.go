package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	otelx "github.com/md-rashed-zaman/trimtrove/libs/otel"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

// Execer is satisfied by pgx.Tx. Append only ever runs inside the caller's
// appointment transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append records appt's current status as an event in the same transaction
// that wrote it, together with the caller's trace context.
func Append(ctx context.Context, tx Execer, appt model.Appointment) error {
	evt, err := AppointmentEvent(appt)
	if err != nil {
		return fmt.Errorf("build %s event: %w", appt.Status, err)
	}
	tc := otelx.CaptureTraceContext(ctx)
	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Parent, tc.State); err != nil {
		return fmt.Errorf("append %s event: %w", evt.EventType, err)
	}
	return nil
}

// Record is a pending row as claimed by the publisher.
type Record struct {
	ID          int64     `db:"id"`
	EventID     string    `db:"event_id"`
	AggregateID string    `db:"aggregate_id"`
	EventType   string    `db:"event_type"`
	Payload     []byte    `db:"payload"`
	Traceparent string    `db:"traceparent"`
	Tracestate  string    `db:"tracestate"`
	CreatedAt   time.Time `db:"created_at"`
}

// claim locks up to limit unpublished rows; concurrent publishers skip each other's rows.
func claim(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text AS event_id, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Record])
}

func markPublished(ctx context.Context, tx pgx.Tx, records []Record) error {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("mark outbox events published: %w", err)
	}
	return nil
}
