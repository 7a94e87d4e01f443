package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/trimtrove/libs/db"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

// CatalogRepository owns locations, their services and weekly hours.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// CreateLocation inserts the location and seeds its default weekly hours.
func (r *CatalogRepository) CreateLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Location{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	loc.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO locations (id, owner_id, name, address, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, loc.ID, loc.OwnerID, loc.Name, loc.Address, loc.Phone).Scan(&loc.CreatedAt)
	if err != nil {
		return model.Location{}, err
	}

	for _, e := range model.DefaultWeeklySchedule(loc.ID) {
		if err := upsertHours(ctx, tx, e); err != nil {
			return model.Location{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Location{}, err
	}
	return loc, nil
}

func (r *CatalogRepository) GetLocation(ctx context.Context, locationID string) (model.Location, error) {
	var loc model.Location
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id, name, address, phone, created_at
		FROM locations
		WHERE id = $1
	`, locationID).Scan(&loc.ID, &loc.OwnerID, &loc.Name, &loc.Address, &loc.Phone, &loc.CreatedAt)
	return loc, translate(err)
}

func (r *CatalogRepository) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	svc.ID = uuid.NewString()
	if svc.Price == "" {
		svc.Price = "0"
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO location_services (id, location_id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING price::text, created_at
	`, svc.ID, svc.LocationID, svc.Name, svc.DurationMinutes, svc.Price, svc.Description).Scan(&svc.Price, &svc.CreatedAt)
	if err != nil {
		return model.Service{}, translate(err)
	}
	return svc, nil
}

// GetService only finds services that belong to locationID.
func (r *CatalogRepository) GetService(ctx context.Context, locationID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, location_id::text, name, duration_minutes, price::text, description, created_at
		FROM location_services
		WHERE location_id = $1 AND id = $2
	`, locationID, serviceID).Scan(&s.ID, &s.LocationID, &s.Name, &s.DurationMinutes, &s.Price, &s.Description, &s.CreatedAt)
	return s, translate(err)
}

func (r *CatalogRepository) ListServices(ctx context.Context, locationID string, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, location_id::text, name, duration_minutes, price::text, description, created_at
		FROM location_services
		WHERE location_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, locationID, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.LocationID, &s.Name, &s.DurationMinutes, &s.Price, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err())
	}
	return out, nil
}

func (r *CatalogRepository) GetWeeklyScheduleEntry(ctx context.Context, locationID string, weekday time.Weekday) (model.WeeklyScheduleEntry, bool, error) {
	e := model.WeeklyScheduleEntry{LocationID: locationID, Weekday: weekday}
	err := r.pool.QueryRow(ctx, `
		SELECT is_closed, open_minute, close_minute
		FROM working_hours
		WHERE location_id = $1 AND weekday = $2
	`, locationID, int16(weekday)).Scan(&e.IsClosed, &e.OpenMinute, &e.CloseMinute)
	if err != nil {
		if IsNotFound(err) {
			return model.WeeklyScheduleEntry{}, false, nil
		}
		return model.WeeklyScheduleEntry{}, false, err
	}
	return e, true, nil
}

func (r *CatalogRepository) ListWorkingHours(ctx context.Context, locationID string) ([]model.WeeklyScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_closed, open_minute, close_minute
		FROM working_hours
		WHERE location_id = $1
		ORDER BY weekday ASC
	`, locationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.WeeklyScheduleEntry
	for rows.Next() {
		e := model.WeeklyScheduleEntry{LocationID: locationID}
		var wd int16
		if err := rows.Scan(&wd, &e.IsClosed, &e.OpenMinute, &e.CloseMinute); err != nil {
			return nil, err
		}
		e.Weekday = time.Weekday(wd)
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err())
	}
	return out, nil
}

func (r *CatalogRepository) UpsertWorkingHours(ctx context.Context, e model.WeeklyScheduleEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := upsertHours(ctx, tx, e); err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

func upsertHours(ctx context.Context, tx pgx.Tx, e model.WeeklyScheduleEntry) error {
	open, closeAt := e.OpenMinute, e.CloseMinute
	if e.IsClosed {
		open, closeAt = 0, 0
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO working_hours (location_id, weekday, is_closed, open_minute, close_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location_id, weekday) DO UPDATE
		SET is_closed = EXCLUDED.is_closed,
			open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			updated_at = now()
	`, e.LocationID, int16(e.Weekday), e.IsClosed, open, closeAt)
	return err
}
