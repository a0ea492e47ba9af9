package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/platform/db"
)

type BusinessRepository struct {
	pool *db.Pool
}

func NewBusinessRepository(pool *db.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) CreateBusiness(ctx context.Context, name, timezone string, autoConfirm bool, hours model.WeeklyHours) (uuid.UUID, error) {
	if err := hours.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid weekly hours: %w", err)
	}
	raw, err := json.Marshal(hours)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, timezone, auto_confirm, weekly_hours)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, timezone, autoConfirm, raw)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *BusinessRepository) GetBusiness(ctx context.Context, id uuid.UUID) (model.Business, bool, error) {
	var b model.Business
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, auto_confirm, weekly_hours, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone, &b.AutoConfirm, &raw, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Business{}, false, nil
		}
		return model.Business{}, false, err
	}
	if err := json.Unmarshal(raw, &b.Hours); err != nil {
		return model.Business{}, false, fmt.Errorf("stored weekly hours corrupt for business %s: %w", id, err)
	}
	return b, true, nil
}

func (r *BusinessRepository) UpdateWeeklyHours(ctx context.Context, id uuid.UUID, hours model.WeeklyHours) error {
	if err := hours.Validate(); err != nil {
		return fmt.Errorf("invalid weekly hours: %w", err)
	}
	raw, err := json.Marshal(hours)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE businesses
		SET weekly_hours = $2,
			updated_at = now()
		WHERE id = $1
	`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("business %s not found", id)
	}
	return nil
}

func (r *BusinessRepository) UpsertHoursOverride(ctx context.Context, ov model.HoursOverride) error {
	if ov.IsOpen && ov.OpenMinute >= ov.CloseMinute {
		return fmt.Errorf("override open %d not before close %d", ov.OpenMinute, ov.CloseMinute)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours_overrides (business_id, date, is_open, open_minute, close_minute)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (business_id, date) DO UPDATE
		SET is_open = EXCLUDED.is_open,
			open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute
	`, ov.BusinessID, ov.Date, ov.IsOpen, ov.OpenMinute, ov.CloseMinute)
	return err
}

func (r *BusinessRepository) GetHoursOverride(ctx context.Context, businessID uuid.UUID, date string) (model.HoursOverride, bool, error) {
	var ov model.HoursOverride
	err := r.pool.QueryRow(ctx, `
		SELECT business_id, date::text, is_open, open_minute, close_minute
		FROM business_hours_overrides
		WHERE business_id = $1 AND date = $2::date
	`, businessID, date).Scan(&ov.BusinessID, &ov.Date, &ov.IsOpen, &ov.OpenMinute, &ov.CloseMinute)
	if err != nil {
		if IsNotFound(err) {
			return model.HoursOverride{}, false, nil
		}
		return model.HoursOverride{}, false, err
	}
	return ov, true, nil
}

func (r *BusinessRepository) CreateClosure(ctx context.Context, c model.Closure) (uuid.UUID, error) {
	if c.StartDate > c.EndDate {
		return uuid.Nil, fmt.Errorf("closure start date %s after end date %s", c.StartDate, c.EndDate)
	}
	if (c.StartMinute == nil) != (c.EndMinute == nil) {
		return uuid.Nil, fmt.Errorf("partial closure needs both start and end minutes")
	}
	if c.StartMinute != nil && *c.StartMinute >= *c.EndMinute {
		return uuid.Nil, fmt.Errorf("closure start minute %d not before end minute %d", *c.StartMinute, *c.EndMinute)
	}
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_closures (id, business_id, start_date, end_date, start_minute, end_minute, reason, closure_type)
		VALUES ($1, $2, $3::date, $4::date, $5, $6, $7, $8)
	`, id, c.BusinessID, c.StartDate, c.EndDate, c.StartMinute, c.EndMinute, c.Reason, c.ClosureType)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *BusinessRepository) ListClosuresOn(ctx context.Context, businessID uuid.UUID, date string) ([]model.Closure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, start_date::text, end_date::text, start_minute, end_minute, reason, closure_type, created_at
		FROM business_closures
		WHERE business_id = $1
			AND start_date <= $2::date
			AND end_date >= $2::date
		ORDER BY created_at ASC
	`, businessID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Closure
	for rows.Next() {
		var c model.Closure
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.StartDate, &c.EndDate, &c.StartMinute, &c.EndMinute, &c.Reason, &c.ClosureType, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BusinessRepository) DeleteClosure(ctx context.Context, businessID, closureID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM business_closures
		WHERE business_id = $1 AND id = $2
	`, businessID, closureID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("closure %s not found", closureID)
	}
	return nil
}

func (r *BusinessRepository) CreateService(ctx context.Context, s model.Service) (uuid.UUID, error) {
	if s.DurationMinutes <= 0 {
		return uuid.Nil, fmt.Errorf("service duration must be positive")
	}
	if s.BufferMinutes < 0 {
		return uuid.Nil, fmt.Errorf("service buffer must not be negative")
	}
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, buffer_minutes, min_advance_days, max_advance_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, s.BusinessID, s.Name, s.DurationMinutes, s.BufferMinutes, s.MinAdvanceDays, s.MaxAdvanceDays, s.IsActive)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *BusinessRepository) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, bool, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, buffer_minutes, min_advance_days, max_advance_days, is_active, created_at
		FROM services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.BufferMinutes, &s.MinAdvanceDays, &s.MaxAdvanceDays, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, false, nil
		}
		return model.Service{}, false, err
	}
	return s, true, nil
}

func (r *BusinessRepository) ListServices(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, duration_minutes, buffer_minutes, min_advance_days, max_advance_days, is_active, created_at
		FROM services
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.BufferMinutes, &s.MinAdvanceDays, &s.MaxAdvanceDays, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BusinessRepository) CreateStaff(ctx context.Context, st model.Staff) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, business_id, name, is_active)
		VALUES ($1, $2, $3, $4)
	`, id, st.BusinessID, st.Name, st.IsActive)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *BusinessRepository) GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (model.Staff, bool, error) {
	var st model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, is_active, created_at
		FROM staff
		WHERE id = $1 AND business_id = $2
	`, staffID, businessID).Scan(&st.ID, &st.BusinessID, &st.Name, &st.IsActive, &st.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Staff{}, false, nil
		}
		return model.Staff{}, false, err
	}
	return st, true, nil
}

func (r *BusinessRepository) ListStaff(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Staff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, is_active, created_at
		FROM staff
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.BusinessID, &st.Name, &st.IsActive, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BusinessRepository) AssignStaffToService(ctx context.Context, staffID, serviceID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_services (staff_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT (staff_id, service_id) DO NOTHING
	`, staffID, serviceID)
	return err
}

func (r *BusinessRepository) IsStaffAssigned(ctx context.Context, staffID, serviceID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff_services WHERE staff_id = $1 AND service_id = $2
		)
	`, staffID, serviceID).Scan(&ok)
	return ok, err
}

func (r *BusinessRepository) ListEligibleStaff(ctx context.Context, serviceID uuid.UUID) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.business_id, s.name, s.is_active, s.created_at
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE ss.service_id = $1 AND s.is_active
		ORDER BY s.created_at ASC
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.BusinessID, &st.Name, &st.IsActive, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BusinessRepository) UpsertStaffHours(ctx context.Context, sh model.StaffHours) error {
	return r.upsertStaffHours(ctx, r.pool, sh)
}

func (r *BusinessRepository) upsertStaffHours(ctx context.Context, q db.Querier, sh model.StaffHours) error {
	if sh.Weekday < 0 || sh.Weekday > 6 {
		return fmt.Errorf("weekday %d out of range", sh.Weekday)
	}
	if sh.IsWorking && sh.StartMinute >= sh.EndMinute {
		return fmt.Errorf("staff hours start %d not before end %d", sh.StartMinute, sh.EndMinute)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, sh.StaffID, sh.Weekday, sh.IsWorking, sh.StartMinute, sh.EndMinute)
	return err
}

func (r *BusinessRepository) GetStaffHours(ctx context.Context, staffID uuid.UUID, weekday int) (model.StaffHours, bool, error) {
	return r.getStaffHours(ctx, r.pool, staffID, weekday)
}

func (r *BusinessRepository) getStaffHours(ctx context.Context, q db.Querier, staffID uuid.UUID, weekday int) (model.StaffHours, bool, error) {
	var sh model.StaffHours
	err := q.QueryRow(ctx, `
		SELECT staff_id, weekday, is_working, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, weekday).Scan(&sh.StaffID, &sh.Weekday, &sh.IsWorking, &sh.StartMinute, &sh.EndMinute)
	if err != nil {
		if IsNotFound(err) {
			return model.StaffHours{}, false, nil
		}
		return model.StaffHours{}, false, err
	}
	return sh, true, nil
}
