package outbox

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// EventType names the topic for an appointment entering status.
func EventType(status model.Status) string {
	name := strings.ToLower(string(status))
	if status == model.StatusPending {
		name = "requested"
	}
	return "booking.appointment." + name + ".v1"
}

// AppointmentEvent snapshots appt for the topic of its current status.
func AppointmentEvent(appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"customer_id":    appt.CustomerID,
		"location_id":    appt.LocationID,
		"service_id":     appt.ServiceID,
		"date":           appt.Date.Format("2006-01-02"),
		"start_time":     model.FormatClock(appt.StartMinute),
		"end_time":       model.FormatClock(appt.EndMinute),
		"status":         string(appt.Status),
		"updated_at":     appt.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventType(appt.Status),
		Payload:       payload,
	}, nil
}
