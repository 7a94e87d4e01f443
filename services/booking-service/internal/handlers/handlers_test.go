package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/trimtrove/libs/auth"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

const testSecret = "test-secret"

type fakeBooking struct {
	slots         []availability.Slot
	slotsErr      error
	bookErr       error
	transitionErr error
	lastActor     appointment.Actor
	lastAction    appointment.Action
	lastID        string
	lastLimit     int
}

func (f *fakeBooking) Slots(_ context.Context, _ booking.SlotQuery) ([]availability.Slot, error) {
	return f.slots, f.slotsErr
}

func (f *fakeBooking) Book(_ context.Context, actor appointment.Actor, req booking.BookRequest) (model.Appointment, error) {
	f.lastActor = actor
	if f.bookErr != nil {
		return model.Appointment{}, f.bookErr
	}
	return model.Appointment{ID: "appt-1", CustomerID: actor.ID, LocationID: req.LocationID, Status: model.StatusPending}, nil
}

func (f *fakeBooking) Transition(_ context.Context, actor appointment.Actor, id string, action appointment.Action) (model.Appointment, error) {
	f.lastActor, f.lastID, f.lastAction = actor, id, action
	return model.Appointment{ID: id}, f.transitionErr
}

func (f *fakeBooking) List(_ context.Context, actor appointment.Actor, limit int) ([]model.Appointment, error) {
	f.lastActor, f.lastLimit = actor, limit
	return []model.Appointment{{
		ID:          "appt-1",
		CustomerID:  actor.ID,
		Date:        time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		StartMinute: 540,
		EndMinute:   570,
		Status:      model.StatusAccepted,
	}}, nil
}

type fakeCatalog struct {
	locations map[string]model.Location
	hours     []model.WeeklyScheduleEntry
	created   []model.Service
}

func (f *fakeCatalog) CreateLocation(_ context.Context, loc model.Location) (model.Location, error) {
	loc.ID = "loc-new"
	f.locations[loc.ID] = loc
	return loc, nil
}

func (f *fakeCatalog) GetLocation(_ context.Context, id string) (model.Location, error) {
	loc, ok := f.locations[id]
	if !ok {
		return model.Location{}, model.ErrNotFound
	}
	return loc, nil
}

func (f *fakeCatalog) CreateService(_ context.Context, svc model.Service) (model.Service, error) {
	svc.ID = "svc-new"
	f.created = append(f.created, svc)
	return svc, nil
}

func (f *fakeCatalog) ListServices(_ context.Context, locationID string, _ int) ([]model.Service, error) {
	return []model.Service{{ID: "svc-1", LocationID: locationID, Name: "Cut", DurationMinutes: 30, Price: "25.00"}}, nil
}

func (f *fakeCatalog) ListWorkingHours(_ context.Context, locationID string) ([]model.WeeklyScheduleEntry, error) {
	return model.DefaultWeeklySchedule(locationID), nil
}

func (f *fakeCatalog) UpsertWorkingHours(_ context.Context, e model.WeeklyScheduleEntry) error {
	f.hours = append(f.hours, e)
	return nil
}

func newTestMux(t *testing.T, b *fakeBooking, c *fakeCatalog) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	mux := http.NewServeMux()
	Routes{
		Booking: NewBookingHandler(b, logger),
		Catalog: NewCatalogHandler(c, logger),
		Authn:   RequireAuth(testSecret),
	}.Register(mux)
	return mux
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: role,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return tok
}

func do(t *testing.T, mux http.Handler, method, target, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	return rw
}

func TestSlotsResponse(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	b := &fakeBooking{slots: []availability.Slot{
		{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)},
		{Start: day.Add(23*time.Hour + 30*time.Minute), End: day.Add(24 * time.Hour)},
	}}
	mux := newTestMux(t, b, &fakeCatalog{})

	rw := do(t, mux, http.MethodGet, "/api/v1/slots?location_id=l&service_id=s&date=2026-03-03", token(t, "cust-1", "customer"), "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var out struct {
		Slots []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Slots) != 2 || out.Slots[0].Start != "09:00" || out.Slots[0].End != "09:30" {
		t.Fatalf("unexpected slots: %+v", out.Slots)
	}
	if out.Slots[1].End != "24:00" {
		t.Fatalf("expected midnight end rendered as 24:00, got %q", out.Slots[1].End)
	}
}

func TestSlotsEmptyIsArray(t *testing.T) {
	mux := newTestMux(t, &fakeBooking{}, &fakeCatalog{})
	rw := do(t, mux, http.MethodGet, "/api/v1/slots?location_id=l&service_id=s&date=2026-03-08", token(t, "owner-1", "owner"), "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got := strings.TrimSpace(rw.Body.String()); got != `{"slots":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestSlotsInvalidParams(t *testing.T) {
	for _, err := range []error{&booking.ValidationError{Field: "date", Message: "required"}, model.ErrNotFound} {
		mux := newTestMux(t, &fakeBooking{slotsErr: err}, &fakeCatalog{})
		rw := do(t, mux, http.MethodGet, "/api/v1/slots?location_id=l", token(t, "cust-1", "customer"), "")
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", err, rw.Code)
		}
		if strings.Contains(rw.Body.String(), "slots") {
			t.Fatalf("error body must not carry slot data: %s", rw.Body.String())
		}
	}
}

func TestSlotsRequireAuthentication(t *testing.T) {
	mux := newTestMux(t, &fakeBooking{}, &fakeCatalog{})
	target := "/api/v1/slots?location_id=l&service_id=s&date=2026-03-03"

	if rw := do(t, mux, http.MethodGet, target, "", ""); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodGet, target, "not-a-jwt", ""); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodGet, target, token(t, "owner-1", "owner"), ""); rw.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", rw.Code)
	}
}

func TestSlotsLimitRunsBeforeAuth(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	throttled := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
	mux := http.NewServeMux()
	Routes{
		Booking:    NewBookingHandler(&fakeBooking{}, logger),
		Catalog:    NewCatalogHandler(&fakeCatalog{}, logger),
		Authn:      RequireAuth(testSecret),
		SlotsLimit: throttled,
	}.Register(mux)

	if rw := do(t, mux, http.MethodGet, "/api/v1/slots?location_id=l&service_id=s&date=2026-03-03", "", ""); rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from the limiter, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodGet, "/api/v1/appointments", token(t, "cust-1", "customer"), ""); rw.Code != http.StatusOK {
		t.Fatalf("limiter must only wrap slots, got %d", rw.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	b := &fakeBooking{}
	mux := newTestMux(t, b, &fakeCatalog{})
	body := `{"location_id":"l","service_id":"s","date":"2026-03-03","start_time":"09:00"}`

	if rw := do(t, mux, http.MethodPost, "/api/v1/appointments", "", body); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPost, "/api/v1/appointments", token(t, "owner-1", "owner"), body); rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner, got %d", rw.Code)
	}

	rw := do(t, mux, http.MethodPost, "/api/v1/appointments", token(t, "cust-1", "customer"), body)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rw.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["appointment_id"] != "appt-1" || out["status"] != "PENDING" {
		t.Fatalf("unexpected response %v", out)
	}
	if b.lastActor.ID != "cust-1" || b.lastActor.Role != appointment.RoleCustomer {
		t.Fatalf("actor not propagated: %+v", b.lastActor)
	}
}

func TestCreateAppointmentErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&booking.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}, http.StatusBadRequest},
		{model.ErrNotFound, http.StatusBadRequest},
		{model.ErrSlotTaken, http.StatusConflict},
		{model.ErrSlotUnavailable, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		mux := newTestMux(t, &fakeBooking{bookErr: tc.err}, &fakeCatalog{})
		rw := do(t, mux, http.MethodPost, "/api/v1/appointments", token(t, "cust-1", "customer"), `{"location_id":"l"}`)
		if rw.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rw.Code)
		}
	}

	mux := newTestMux(t, &fakeBooking{}, &fakeCatalog{})
	if rw := do(t, mux, http.MethodPost, "/api/v1/appointments", token(t, "cust-1", "customer"), `{`); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad json, got %d", rw.Code)
	}
}

func TestListAppointments(t *testing.T) {
	b := &fakeBooking{}
	mux := newTestMux(t, b, &fakeCatalog{})

	rw := do(t, mux, http.MethodGet, "/api/v1/appointments?limit=20", token(t, "cust-1", "customer"), "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if b.lastLimit != 20 {
		t.Fatalf("expected limit 20, got %d", b.lastLimit)
	}
	var out struct {
		Appointments []appointmentView `json:"appointments"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Appointments) != 1 || out.Appointments[0].StartTime != "09:00" || out.Appointments[0].Date != "2026-03-03" {
		t.Fatalf("unexpected list %+v", out.Appointments)
	}

	if rw := do(t, mux, http.MethodGet, "/api/v1/appointments?limit=abc", token(t, "cust-1", "customer"), ""); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad limit, got %d", rw.Code)
	}
}

func TestTransitionEndpoints(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		role   string
		err    error
		want   int
		action appointment.Action
	}{
		{"accept", "/api/v1/appointments/a1/accept", "owner", nil, http.StatusNoContent, appointment.ActionAccept},
		{"cancel", "/api/v1/appointments/a1/cancel", "customer", nil, http.StatusNoContent, appointment.ActionCancel},
		{"not found", "/api/v1/appointments/a1/reject", "owner", model.ErrNotFound, http.StatusNotFound, appointment.ActionReject},
		{"strict conflict", "/api/v1/appointments/a1/complete", "owner", appointment.ErrInvalidTransition, http.StatusConflict, appointment.ActionComplete},
		{"unknown action", "/api/v1/appointments/a1/delete", "owner", nil, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBooking{transitionErr: tc.err}
			mux := newTestMux(t, b, &fakeCatalog{})
			rw := do(t, mux, http.MethodPost, tc.path, token(t, "user-1", tc.role), "")
			if rw.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rw.Code)
			}
			if tc.action != "" && (b.lastAction != tc.action || b.lastID != "a1") {
				t.Fatalf("unexpected call: id=%q action=%q", b.lastID, b.lastAction)
			}
		})
	}
}

func TestCatalogOwnership(t *testing.T) {
	c := &fakeCatalog{locations: map[string]model.Location{
		"loc-1": {ID: "loc-1", OwnerID: "owner-1"},
	}}
	mux := newTestMux(t, &fakeBooking{}, c)
	svcBody := `{"name":"Cut","duration_minutes":30,"price":"25.00"}`

	if rw := do(t, mux, http.MethodPost, "/api/v1/locations/loc-1/services", token(t, "owner-2", "owner"), svcBody); rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign owner, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPost, "/api/v1/locations/loc-1/services", token(t, "cust-1", "customer"), svcBody); rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPost, "/api/v1/locations/loc-1/services", token(t, "owner-1", "owner"), `{"name":"Cut","duration_minutes":0}`); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero duration, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPost, "/api/v1/locations/loc-1/services", token(t, "owner-1", "owner"), svcBody); rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	if len(c.created) != 1 || c.created[0].LocationID != "loc-1" {
		t.Fatalf("service not created: %+v", c.created)
	}

	if rw := do(t, mux, http.MethodGet, "/api/v1/locations/loc-1/services", "", ""); rw.Code != http.StatusOK {
		t.Fatalf("expected public service list, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodGet, "/api/v1/locations/missing/services", "", ""); rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown location, got %d", rw.Code)
	}
}

func TestWorkingHours(t *testing.T) {
	c := &fakeCatalog{locations: map[string]model.Location{
		"loc-1": {ID: "loc-1", OwnerID: "owner-1"},
	}}
	mux := newTestMux(t, &fakeBooking{}, c)
	ownerTok := token(t, "owner-1", "owner")

	if rw := do(t, mux, http.MethodPut, "/api/v1/locations/loc-1/working-hours", ownerTok, `{"weekday":7,"open_minute":540,"close_minute":1200}`); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weekday 7, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPut, "/api/v1/locations/loc-1/working-hours", ownerTok, `{"weekday":1,"open_minute":1200,"close_minute":540}`); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted hours, got %d", rw.Code)
	}
	if rw := do(t, mux, http.MethodPut, "/api/v1/locations/loc-1/working-hours", ownerTok, `{"weekday":0,"open_minute":600,"close_minute":840}`); rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if len(c.hours) != 1 || c.hours[0].Weekday != time.Sunday || c.hours[0].OpenMinute != 600 {
		t.Fatalf("unexpected upsert %+v", c.hours)
	}

	rw := do(t, mux, http.MethodGet, "/api/v1/locations/loc-1/working-hours", "", "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var out []hoursView
	if err := json.Unmarshal(rw.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 7 || !out[0].IsClosed || out[1].OpenTime != "09:00" || out[1].CloseTime != "20:00" {
		t.Fatalf("unexpected hours %+v", out)
	}
}

func TestCreateLocation(t *testing.T) {
	c := &fakeCatalog{locations: map[string]model.Location{}}
	mux := newTestMux(t, &fakeBooking{}, c)

	rw := do(t, mux, http.MethodPost, "/api/v1/locations", token(t, "owner-1", "owner"), `{"name":"  Corner Barber ","address":"Main St 1"}`)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	loc := c.locations["loc-new"]
	if loc.OwnerID != "owner-1" || loc.Name != "Corner Barber" {
		t.Fatalf("unexpected location %+v", loc)
	}

	if rw := do(t, mux, http.MethodPost, "/api/v1/locations", token(t, "owner-1", "owner"), `{"name":" "}`); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rw.Code)
	}
}
