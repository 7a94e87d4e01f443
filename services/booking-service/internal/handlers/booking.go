package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

type BookingService interface {
	Slots(ctx context.Context, q booking.SlotQuery) ([]availability.Slot, error)
	Book(ctx context.Context, actor appointment.Actor, req booking.BookRequest) (model.Appointment, error)
	Transition(ctx context.Context, actor appointment.Actor, appointmentID string, action appointment.Action) (model.Appointment, error)
	List(ctx context.Context, actor appointment.Actor, limit int) ([]model.Appointment, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type slotView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Slots answers GET /api/v1/slots. Any bad, unknown or mismatched parameter is a
// plain 400 with no slot data.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slots, err := h.svc.Slots(r.Context(), booking.SlotQuery{
		LocationID: strings.TrimSpace(q.Get("location_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		Date:       strings.TrimSpace(q.Get("date")),
	})
	if err != nil {
		if booking.IsValidation(err) || errors.Is(err, model.ErrNotFound) {
			http.Error(w, "invalid params", http.StatusBadRequest)
			return
		}
		h.logger.Error("slot query failed", "err", err)
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		start := s.Start.Hour()*60 + s.Start.Minute()
		end := start + int(s.End.Sub(s.Start)/time.Minute)
		out = append(out, slotView{Start: model.FormatClock(start), End: model.FormatClock(end)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

type createRequest struct {
	LocationID string `json:"location_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	Notes      string `json:"notes"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Book(r.Context(), actor, booking.BookRequest{
		LocationID: req.LocationID,
		ServiceID:  req.ServiceID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		Notes:      req.Notes,
	})
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			http.Error(w, verr.Error(), http.StatusBadRequest)
		case errors.Is(err, model.ErrNotFound):
			http.Error(w, "unknown location or service", http.StatusBadRequest)
		case errors.Is(err, appointment.ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, model.ErrSlotTaken), errors.Is(err, model.ErrSlotUnavailable):
			http.Error(w, "time slot not available", http.StatusConflict)
		default:
			h.logger.Error("create appointment failed", "err", err)
			http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"appointment_id": appt.ID,
		"status":         string(appt.Status),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	appts, err := h.svc.List(r.Context(), actor, limit)
	if err != nil {
		if errors.Is(err, appointment.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.logger.Error("list appointments failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	out := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		out = append(out, toView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// Transition serves POST /api/v1/appointments/{id}/{action}.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	action, err := appointment.ParseAction(r.PathValue("action"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	_, err = h.svc.Transition(r.Context(), actor, r.PathValue("id"), action)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, appointment.ErrInvalidTransition):
		http.Error(w, "appointment cannot be "+strings.ToLower(string(action.Target())), http.StatusConflict)
	default:
		h.logger.Error("appointment transition failed", "err", err, "action", string(action))
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
	}
}

type appointmentView struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	LocationID string `json:"location_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toView(a model.Appointment) appointmentView {
	return appointmentView{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		LocationID: a.LocationID,
		ServiceID:  a.ServiceID,
		Date:       a.Date.Format("2006-01-02"),
		StartTime:  model.FormatClock(a.StartMinute),
		EndTime:    model.FormatClock(a.EndMinute),
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
