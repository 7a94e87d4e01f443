// Package booking answers slot queries and drives appointments through their
// lifecycle on top of the schedule, catalog and appointment stores.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	dateLayout = "2006-01-02"

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// CalendarProvider answers which hours a location keeps on a weekday.
type CalendarProvider interface {
	GetWeeklyScheduleEntry(ctx context.Context, locationID string, weekday time.Weekday) (model.WeeklyScheduleEntry, bool, error)
}

// Catalog resolves locations and their services. GetService returns
// model.ErrNotFound when the service does not belong to the location.
type Catalog interface {
	GetLocation(ctx context.Context, locationID string) (model.Location, error)
	GetService(ctx context.Context, locationID, serviceID string) (model.Service, error)
}

// ReservationStore lists the PENDING and ACCEPTED appointments of a location on a date.
type ReservationStore interface {
	ListBlockingReservations(ctx context.Context, locationID string, date time.Time) ([]model.Reservation, error)
}

// AppointmentStore persists appointments.
//
// BookSlot serializes bookings for the appointment's location and date, hands the
// current blocking reservations to verify and inserts appt only if verify returns nil.
//
// UpdateStatus locks the appointment visible to actor, asks decide for the next
// status and writes it only when it differs. It returns model.ErrNotFound when the
// appointment does not exist or is not visible to actor.
type AppointmentStore interface {
	ReservationStore
	BookSlot(ctx context.Context, appt model.Appointment, verify func([]model.Reservation) error) error
	UpdateStatus(ctx context.Context, appointmentID string, actor appointment.Actor, decide func(model.Appointment) (model.Status, error)) (model.Appointment, bool, error)
	ListForCustomer(ctx context.Context, customerID string, limit int) ([]model.Appointment, error)
	ListForOwner(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error)
}

// Clock is injected so "now" is controllable in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ValidationError reports a malformed or inconsistent request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type Config struct {
	// Step is the distance between candidate starts.
	Step time.Duration
	// HorizonDays bounds how far ahead a date may be booked. Slot queries are unbounded.
	HorizonDays int
	// Strict surfaces invalid transitions as appointment.ErrInvalidTransition
	// instead of ignoring them.
	Strict bool
	// Location is the zone schedule hours and dates are interpreted in.
	Location *time.Location
}

type Service struct {
	calendar CalendarProvider
	catalog  Catalog
	store    AppointmentStore
	clock    Clock
	cfg      Config
	logger   *slog.Logger
}

func NewService(calendar CalendarProvider, catalog Catalog, store AppointmentStore, clock Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.Step <= 0 {
		cfg.Step = availability.DefaultStep
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{calendar: calendar, catalog: catalog, store: store, clock: clock, cfg: cfg, logger: logger}
}

type SlotQuery struct {
	LocationID string
	ServiceID  string
	Date       string
}

// Slots returns the bookable windows for the service on the date. Unknown or
// mismatched ids come back as model.ErrNotFound; malformed input as *ValidationError.
func (s *Service) Slots(ctx context.Context, q SlotQuery) ([]availability.Slot, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("location_id", q.LocationID),
		attribute.String("service_id", q.ServiceID),
		attribute.String("date", q.Date),
	)

	started := time.Now()
	slots, err := s.slots(ctx, q)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotFound), IsValidation(err):
		outcome = "invalid"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "slot computation failed")
	}
	metrics.ObserveSlotQuery(outcome, len(slots), time.Since(started))
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, err
}

func (s *Service) slots(ctx context.Context, q SlotQuery) ([]availability.Slot, error) {
	if strings.TrimSpace(q.LocationID) == "" {
		return nil, invalid("location_id", "required")
	}
	if strings.TrimSpace(q.ServiceID) == "" {
		return nil, invalid("service_id", "required")
	}
	date, err := s.parseDate(q.Date)
	if err != nil {
		return nil, err
	}

	svc, err := s.resolve(ctx, q.LocationID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	entry, found, err := s.calendar.GetWeeklyScheduleEntry(ctx, q.LocationID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if !found || entry.IsClosed {
		return nil, nil
	}

	reservations, err := s.store.ListBlockingReservations(ctx, q.LocationID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return availability.ComputeSlots(&entry, date, svc.Duration(), s.cfg.Step, reservations, s.clock.Now()), nil
}

type BookRequest struct {
	LocationID string
	ServiceID  string
	Date       string
	StartTime  string
	Notes      string
}

// Book creates a PENDING appointment for the customer if the requested start is
// one of the slots Slots would offer at the moment of insert.
func (s *Service) Book(ctx context.Context, actor appointment.Actor, req BookRequest) (model.Appointment, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.book")
	defer span.End()

	appt, err := s.book(ctx, actor, req)
	switch {
	case err == nil:
		metrics.IncBooking("created")
		span.SetAttributes(attribute.String("appointment_id", appt.ID))
	case errors.Is(err, model.ErrSlotTaken), errors.Is(err, model.ErrSlotUnavailable):
		metrics.IncBooking("conflict")
	case errors.Is(err, model.ErrNotFound), errors.Is(err, appointment.ErrForbidden), IsValidation(err):
		metrics.IncBooking("invalid")
	default:
		metrics.IncBooking("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
	}
	return appt, err
}

func (s *Service) book(ctx context.Context, actor appointment.Actor, req BookRequest) (model.Appointment, error) {
	if actor.Role != appointment.RoleCustomer || actor.ID == "" {
		return model.Appointment{}, appointment.ErrForbidden
	}
	if strings.TrimSpace(req.LocationID) == "" {
		return model.Appointment{}, invalid("location_id", "required")
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		return model.Appointment{}, invalid("service_id", "required")
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return model.Appointment{}, err
	}
	startMinute, err := model.ParseClock(strings.TrimSpace(req.StartTime))
	if err != nil {
		return model.Appointment{}, invalid("start_time", "must be HH:MM")
	}
	if !s.withinHorizon(date) {
		return model.Appointment{}, invalid("date", fmt.Sprintf("must be between today and %d days ahead", s.cfg.HorizonDays))
	}

	svc, err := s.resolve(ctx, req.LocationID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}

	entry, found, err := s.calendar.GetWeeklyScheduleEntry(ctx, req.LocationID, date.Weekday())
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load schedule: %w", err)
	}
	if !found || entry.IsClosed {
		return model.Appointment{}, model.ErrSlotUnavailable
	}

	now := s.clock.Now()
	appt := model.Appointment{
		ID:          uuid.NewString(),
		CustomerID:  actor.ID,
		LocationID:  req.LocationID,
		ServiceID:   req.ServiceID,
		Date:        date,
		StartMinute: startMinute,
		EndMinute:   startMinute + svc.DurationMinutes,
		Status:      model.StatusPending,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	start := availability.AtMinute(date, startMinute)

	verify := func(reservations []model.Reservation) error {
		now := s.clock.Now()
		if offered(availability.ComputeSlots(&entry, date, svc.Duration(), s.cfg.Step, reservations, now), start) {
			return nil
		}
		if offered(availability.ComputeSlots(&entry, date, svc.Duration(), s.cfg.Step, nil, now), start) {
			return model.ErrSlotTaken
		}
		return model.ErrSlotUnavailable
	}

	if err := s.store.BookSlot(ctx, appt, verify); err != nil {
		if errors.Is(err, model.ErrSlotTaken) || errors.Is(err, model.ErrSlotUnavailable) {
			return model.Appointment{}, err
		}
		return model.Appointment{}, fmt.Errorf("book slot: %w", err)
	}
	s.logger.Info("appointment requested",
		"appointment_id", appt.ID,
		"location_id", appt.LocationID,
		"date", date.Format(dateLayout),
		"start", model.FormatClock(appt.StartMinute),
	)
	return appt, nil
}

// Transition applies action to the appointment on behalf of actor. Appointments the
// actor may not act on are reported as model.ErrNotFound. An action that is not
// valid from the current status leaves the appointment untouched and, in strict
// mode, returns appointment.ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, actor appointment.Actor, appointmentID string, action appointment.Action) (model.Appointment, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment_id", appointmentID),
		attribute.String("action", string(action)),
	)

	appt, changed, err := s.transition(ctx, actor, appointmentID, action)
	outcome := "applied"
	switch {
	case err == nil && !changed:
		outcome = "noop"
	case err == nil:
	case errors.Is(err, model.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, appointment.ErrInvalidTransition):
		outcome = "rejected"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
	}
	metrics.IncTransition(string(action), outcome)
	if err == nil && changed {
		s.logger.Info("appointment status changed", "appointment_id", appt.ID, "status", string(appt.Status))
	}
	return appt, err
}

func (s *Service) transition(ctx context.Context, actor appointment.Actor, appointmentID string, action appointment.Action) (model.Appointment, bool, error) {
	if strings.TrimSpace(appointmentID) == "" || actor.ID == "" {
		return model.Appointment{}, false, model.ErrNotFound
	}
	if action.Actor() != actor.Role {
		return model.Appointment{}, false, model.ErrNotFound
	}

	decide := func(current model.Appointment) (model.Status, error) {
		next, err := appointment.Next(current.Status, action, actor.Role)
		if errors.Is(err, appointment.ErrInvalidTransition) && !s.cfg.Strict {
			return current.Status, nil
		}
		return next, err
	}

	appt, changed, err := s.store.UpdateStatus(ctx, appointmentID, actor, decide)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, appointment.ErrInvalidTransition) {
			return model.Appointment{}, false, err
		}
		if errors.Is(err, appointment.ErrForbidden) {
			return model.Appointment{}, false, model.ErrNotFound
		}
		return model.Appointment{}, false, fmt.Errorf("update status: %w", err)
	}
	return appt, changed, nil
}

// List returns a customer's own appointments or, for an owner, the appointments
// at their locations. Newest first.
func (s *Service) List(ctx context.Context, actor appointment.Actor, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	switch actor.Role {
	case appointment.RoleCustomer:
		return s.store.ListForCustomer(ctx, actor.ID, limit)
	case appointment.RoleOwner:
		return s.store.ListForOwner(ctx, actor.ID, limit)
	default:
		return nil, appointment.ErrForbidden
	}
}

func (s *Service) resolve(ctx context.Context, locationID, serviceID string) (model.Service, error) {
	if _, err := s.catalog.GetLocation(ctx, locationID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Service{}, err
		}
		return model.Service{}, fmt.Errorf("load location: %w", err)
	}
	svc, err := s.catalog.GetService(ctx, locationID, serviceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Service{}, err
		}
		return model.Service{}, fmt.Errorf("load service: %w", err)
	}
	if svc.DurationMinutes <= 0 {
		return model.Service{}, invalid("service_id", "service has no duration")
	}
	return svc, nil
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalid("date", "required")
	}
	date, err := time.ParseInLocation(dateLayout, raw, s.cfg.Location)
	if err != nil {
		return time.Time{}, invalid("date", "must be YYYY-MM-DD")
	}
	return date, nil
}

// withinHorizon reports whether date lies between today and today+HorizonDays, inclusive.
func (s *Service) withinHorizon(date time.Time) bool {
	now := s.clock.Now().In(s.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	last := today.AddDate(0, 0, s.cfg.HorizonDays)
	return !date.Before(today) && !date.After(last)
}

func offered(slots []availability.Slot, start time.Time) bool {
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
