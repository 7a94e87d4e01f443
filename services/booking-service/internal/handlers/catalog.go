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

	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

type CatalogStore interface {
	CreateLocation(ctx context.Context, loc model.Location) (model.Location, error)
	GetLocation(ctx context.Context, locationID string) (model.Location, error)
	CreateService(ctx context.Context, svc model.Service) (model.Service, error)
	ListServices(ctx context.Context, locationID string, limit int) ([]model.Service, error)
	ListWorkingHours(ctx context.Context, locationID string) ([]model.WeeklyScheduleEntry, error)
	UpsertWorkingHours(ctx context.Context, e model.WeeklyScheduleEntry) error
}

// CatalogHandler manages locations, their services and weekly hours. Reads are
// public; writes require the location's owner.
type CatalogHandler struct {
	repo   CatalogStore
	logger *slog.Logger
}

func NewCatalogHandler(repo CatalogStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

func (h *CatalogHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	loc, err := h.repo.CreateLocation(r.Context(), model.Location{
		OwnerID: actor.ID,
		Name:    req.Name,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		h.logger.Error("create location failed", "err", err)
		http.Error(w, "failed to create location", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       loc.ID,
		"owner_id": loc.OwnerID,
		"name":     loc.Name,
	})
}

type serviceView struct {
	ID              string `json:"id"`
	LocationID      string `json:"location_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	Description     string `json:"description"`
	CreatedAt       string `json:"created_at"`
}

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")
	if _, ok := h.location(w, r, locationID); !ok {
		return
	}

	services, err := h.repo.ListServices(r.Context(), locationID, 100)
	if err != nil {
		h.logger.Error("list services failed", "err", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, serviceView{
			ID:              s.ID,
			LocationID:      s.LocationID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           s.Price,
			Description:     s.Description,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")
	if !h.ownedLocation(w, r, locationID) {
		return
	}

	var req struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		Price           string `json:"price"`
		Description     string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 1440 {
		http.Error(w, "duration_minutes must be between 1 and 1440", http.StatusBadRequest)
		return
	}
	req.Price = strings.TrimSpace(req.Price)
	if req.Price != "" {
		if p, err := strconv.ParseFloat(req.Price, 64); err != nil || p < 0 {
			http.Error(w, "invalid price", http.StatusBadRequest)
			return
		}
	}

	svc, err := h.repo.CreateService(r.Context(), model.Service{
		LocationID:      locationID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Description:     strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.logger.Error("create service failed", "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": svc.ID})
}

type hoursView struct {
	Weekday     int    `json:"weekday"`
	IsClosed    bool   `json:"is_closed"`
	OpenMinute  int    `json:"open_minute"`
	CloseMinute int    `json:"close_minute"`
	OpenTime    string `json:"open_time,omitempty"`
	CloseTime   string `json:"close_time,omitempty"`
}

func (h *CatalogHandler) ListWorkingHours(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")
	if _, ok := h.location(w, r, locationID); !ok {
		return
	}

	entries, err := h.repo.ListWorkingHours(r.Context(), locationID)
	if err != nil {
		h.logger.Error("list working hours failed", "err", err)
		http.Error(w, "failed to list working hours", http.StatusInternalServerError)
		return
	}
	out := make([]hoursView, 0, len(entries))
	for _, e := range entries {
		v := hoursView{Weekday: int(e.Weekday), IsClosed: e.IsClosed, OpenMinute: e.OpenMinute, CloseMinute: e.CloseMinute}
		if !e.IsClosed {
			v.OpenTime = model.FormatClock(e.OpenMinute)
			v.CloseTime = model.FormatClock(e.CloseMinute)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) UpsertWorkingHours(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")
	if !h.ownedLocation(w, r, locationID) {
		return
	}

	var req struct {
		Weekday     int  `json:"weekday"`
		IsClosed    bool `json:"is_closed"`
		OpenMinute  int  `json:"open_minute"`
		CloseMinute int  `json:"close_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	entry := model.WeeklyScheduleEntry{
		LocationID:  locationID,
		Weekday:     time.Weekday(req.Weekday),
		IsClosed:    req.IsClosed,
		OpenMinute:  req.OpenMinute,
		CloseMinute: req.CloseMinute,
	}
	if err := entry.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertWorkingHours(r.Context(), entry); err != nil {
		h.logger.Error("upsert working hours failed", "err", err)
		http.Error(w, "failed to upsert working hours", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) location(w http.ResponseWriter, r *http.Request, locationID string) (model.Location, bool) {
	loc, err := h.repo.GetLocation(r.Context(), locationID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "location not found", http.StatusNotFound)
			return model.Location{}, false
		}
		h.logger.Error("load location failed", "err", err)
		http.Error(w, "failed to load location", http.StatusInternalServerError)
		return model.Location{}, false
	}
	return loc, true
}

// ownedLocation writes a 404 unless the caller owns the location.
func (h *CatalogHandler) ownedLocation(w http.ResponseWriter, r *http.Request, locationID string) bool {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	loc, ok := h.location(w, r, locationID)
	if !ok {
		return false
	}
	if loc.OwnerID != actor.ID {
		http.Error(w, "location not found", http.StatusNotFound)
		return false
	}
	return true
}
