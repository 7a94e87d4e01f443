package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/trimtrove/libs/httpx"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
)

// Routes mounts the booking API on a mux. Authn verifies callers; SlotsLimit,
// when set, throttles the slot query before the token is checked.
type Routes struct {
	Booking    *BookingHandler
	Catalog    *CatalogHandler
	Authn      httpx.Middleware
	SlotsLimit httpx.Middleware
}

func (rt Routes) Register(mux *http.ServeMux) {
	customer := []httpx.Middleware{rt.Authn, RequireRole(appointment.RoleCustomer)}
	owner := []httpx.Middleware{rt.Authn, RequireRole(appointment.RoleOwner)}
	anyone := []httpx.Middleware{rt.Authn, RequireRole(appointment.RoleCustomer, appointment.RoleOwner)}

	slots := append([]httpx.Middleware{rt.SlotsLimit}, anyone...)

	mux.Handle("GET /api/v1/slots", httpx.Chain(http.HandlerFunc(rt.Booking.Slots), slots...))
	mux.Handle("POST /api/v1/appointments", httpx.Chain(http.HandlerFunc(rt.Booking.Create), customer...))
	mux.Handle("GET /api/v1/appointments", httpx.Chain(http.HandlerFunc(rt.Booking.List), anyone...))
	mux.Handle("POST /api/v1/appointments/{id}/{action}", httpx.Chain(http.HandlerFunc(rt.Booking.Transition), anyone...))

	mux.Handle("POST /api/v1/locations", httpx.Chain(http.HandlerFunc(rt.Catalog.CreateLocation), owner...))
	mux.Handle("GET /api/v1/locations/{id}/services", http.HandlerFunc(rt.Catalog.ListServices))
	mux.Handle("POST /api/v1/locations/{id}/services", httpx.Chain(http.HandlerFunc(rt.Catalog.CreateService), owner...))
	mux.Handle("GET /api/v1/locations/{id}/working-hours", http.HandlerFunc(rt.Catalog.ListWorkingHours))
	mux.Handle("PUT /api/v1/locations/{id}/working-hours", httpx.Chain(http.HandlerFunc(rt.Catalog.UpsertWorkingHours), owner...))
}
