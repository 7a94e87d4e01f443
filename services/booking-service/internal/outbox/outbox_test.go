package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/trimtrove/libs/kafkax"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

func TestEventType(t *testing.T) {
	cases := map[model.Status]string{
		model.StatusPending:   "booking.appointment.requested.v1",
		model.StatusAccepted:  "booking.appointment.accepted.v1",
		model.StatusRejected:  "booking.appointment.rejected.v1",
		model.StatusCancelled: "booking.appointment.cancelled.v1",
		model.StatusCompleted: "booking.appointment.completed.v1",
	}
	for status, want := range cases {
		if got := EventType(status); got != want {
			t.Fatalf("EventType(%s) = %q, want %q", status, got, want)
		}
	}
}

func TestAppointmentEvent(t *testing.T) {
	appt := model.Appointment{
		ID:          "appt-1",
		CustomerID:  "cust-1",
		LocationID:  "loc-1",
		ServiceID:   "svc-1",
		Date:        time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		StartMinute: 540,
		EndMinute:   585,
		Status:      model.StatusAccepted,
		UpdatedAt:   time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	evt, err := AppointmentEvent(appt)
	if err != nil {
		t.Fatalf("AppointmentEvent failed: %v", err)
	}
	if evt.AggregateType != "appointment" || evt.AggregateID != "appt-1" || evt.EventType != "booking.appointment.accepted.v1" {
		t.Fatalf("unexpected envelope %+v", evt)
	}

	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["date"] != "2026-03-03" || payload["start_time"] != "09:00" || payload["end_time"] != "09:45" || payload["status"] != "ACCEPTED" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(context.Background(), Record{
		ID:          7,
		EventID:     "evt-7",
		AggregateID: "appt-1",
		EventType:   "booking.appointment.cancelled.v1",
		Payload:     []byte(`{}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})
	if msg.Topic != "booking.appointment.cancelled.v1" || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected routing topic=%q key=%q", msg.Topic, msg.Key)
	}
	if kafkax.HeaderValue(msg.Headers, "event_id") != "evt-7" {
		t.Fatalf("missing event_id header: %v", msg.Headers)
	}
}

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, nil, PublisherConfig{Brokers: "kafka:9092, "})
	if p.pollEvery != 2*time.Second || p.batchSize != 50 {
		t.Fatalf("unexpected defaults poll=%v batch=%d", p.pollEvery, p.batchSize)
	}
	if len(p.brokers) != 1 || p.brokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers %v", p.brokers)
	}
}

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.CommandTag{}, r.err
}

func TestAppend(t *testing.T) {
	appt := model.Appointment{
		ID:          "appt-2",
		LocationID:  "loc-1",
		Date:        time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		StartMinute: 600,
		EndMinute:   630,
		Status:      model.StatusPending,
	}
	tx := &recordingExec{}
	if err := Append(context.Background(), tx, appt); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !strings.Contains(tx.sql, "INSERT INTO outbox_events") || len(tx.args) != 6 {
		t.Fatalf("unexpected statement %q with %d args", tx.sql, len(tx.args))
	}
	if tx.args[0] != "appointment" || tx.args[1] != "appt-2" || tx.args[2] != "booking.appointment.requested.v1" {
		t.Fatalf("unexpected envelope args %v", tx.args[:3])
	}
	// No span in ctx, so no trace context is stored.
	if tx.args[4] != "" || tx.args[5] != "" {
		t.Fatalf("expected empty trace context, got %v %v", tx.args[4], tx.args[5])
	}

	failing := &recordingExec{err: errors.New("connection reset")}
	err := Append(context.Background(), failing, appt)
	if err == nil || !errors.Is(err, failing.err) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
}
