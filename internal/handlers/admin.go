package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/platform/db"
	"github.com/slotwise/bookingd/internal/storage"
)

// CalendarInvalidator drops cached calendar resolutions for a business.
type CalendarInvalidator interface {
	Invalidate(ctx context.Context, businessID uuid.UUID)
}

// AdminHandler owns the business-configuration surface. Every mutation
// that changes how a day resolves invalidates the calendar cache and
// emits business.hours.updated.v1 so other processes drop theirs too.
type AdminHandler struct {
	repo        *storage.BusinessRepository
	pool        *db.Pool
	events      *outbox.Repository
	invalidator CalendarInvalidator
	logger      *slog.Logger
}

func NewAdminHandler(repo *storage.BusinessRepository, pool *db.Pool, events *outbox.Repository, invalidator CalendarInvalidator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		repo:        repo,
		pool:        pool,
		events:      events,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (h *AdminHandler) calendarChanged(ctx context.Context, businessID uuid.UUID) {
	h.invalidator.Invalidate(ctx, businessID)
	payload, _ := json.Marshal(map[string]string{"business_id": businessID.String()})
	err := h.events.Insert(ctx, h.pool, outbox.Event{
		AggregateType: "business",
		AggregateID:   businessID.String(),
		EventType:     outbox.EventBusinessHoursUpdated,
		Payload:       payload,
	})
	if err != nil {
		h.logger.Error("hours-updated event enqueue failed", "business_id", businessID, "err", err)
	}
}

// Businesses serves POST (create) and GET ?id= on /api/v1/admin/businesses.
func (h *AdminHandler) Businesses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBusiness(w, r)
	case http.MethodGet:
		h.getBusiness(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createBusiness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name"`
		Timezone    string            `json:"timezone"`
		AutoConfirm bool              `json:"auto_confirm"`
		Hours       model.WeeklyHours `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if err := req.Hours.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateBusiness(r.Context(), req.Name, req.Timezone, req.AutoConfirm, req.Hours)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"business_id": id.String()})
}

func (h *AdminHandler) getBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	biz, found, err := h.repo.GetBusiness(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !found {
		http.Error(w, "business not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business_id":  biz.ID.String(),
		"name":         biz.Name,
		"timezone":     biz.Timezone,
		"auto_confirm": biz.AutoConfirm,
		"hours":        biz.Hours,
	})
}

// Hours serves PUT /api/v1/admin/businesses/hours.
func (h *AdminHandler) Hours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		BusinessID string            `json:"business_id"`
		Hours      model.WeeklyHours `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	if err := req.Hours.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateWeeklyHours(r.Context(), businessID, req.Hours); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.calendarChanged(r.Context(), businessID)
	w.WriteHeader(http.StatusNoContent)
}

// Overrides serves PUT /api/v1/admin/businesses/overrides.
func (h *AdminHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		BusinessID  string `json:"business_id"`
		Date        string `json:"date"`
		IsOpen      bool   `json:"is_open"`
		OpenMinute  int    `json:"open_minute"`
		CloseMinute int    `json:"close_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	if !validDate(req.Date) {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if req.IsOpen && req.OpenMinute >= req.CloseMinute {
		http.Error(w, "open_minute must be before close_minute", http.StatusBadRequest)
		return
	}

	err = h.repo.UpsertHoursOverride(r.Context(), model.HoursOverride{
		BusinessID:  businessID,
		Date:        req.Date,
		IsOpen:      req.IsOpen,
		OpenMinute:  req.OpenMinute,
		CloseMinute: req.CloseMinute,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.calendarChanged(r.Context(), businessID)
	w.WriteHeader(http.StatusNoContent)
}

// Closures serves POST (create) and DELETE ?business_id=&id= on
// /api/v1/admin/closures.
func (h *AdminHandler) Closures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createClosure(w, r)
	case http.MethodDelete:
		h.deleteClosure(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createClosure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID  string `json:"business_id"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		StartMinute *int   `json:"start_minute"`
		EndMinute   *int   `json:"end_minute"`
		Reason      string `json:"reason"`
		ClosureType string `json:"closure_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	if !validDate(req.StartDate) || !validDate(req.EndDate) || req.EndDate < req.StartDate {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateClosure(r.Context(), model.Closure{
		BusinessID:  businessID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Reason:      strings.TrimSpace(req.Reason),
		ClosureType: strings.TrimSpace(req.ClosureType),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.calendarChanged(r.Context(), businessID)
	writeJSON(w, http.StatusCreated, map[string]string{"closure_id": id.String()})
}

func (h *AdminHandler) deleteClosure(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	closureID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteClosure(r.Context(), businessID, closureID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.calendarChanged(r.Context(), businessID)
	w.WriteHeader(http.StatusNoContent)
}

// Services serves POST (create) and GET ?business_id= on
// /api/v1/admin/services.
func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		h.listServices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID      string `json:"business_id"`
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		BufferMinutes   int    `json:"buffer_minutes"`
		MinAdvanceDays  int    `json:"min_advance_days"`
		MaxAdvanceDays  int    `json:"max_advance_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes <= 0 || req.BufferMinutes < 0 {
		http.Error(w, "name and positive duration required", http.StatusBadRequest)
		return
	}
	if req.MinAdvanceDays < 0 || (req.MaxAdvanceDays > 0 && req.MaxAdvanceDays < req.MinAdvanceDays) {
		http.Error(w, "invalid advance-day bounds", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), model.Service{
		BusinessID:      businessID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		BufferMinutes:   req.BufferMinutes,
		MinAdvanceDays:  req.MinAdvanceDays,
		MaxAdvanceDays:  req.MaxAdvanceDays,
		IsActive:        true,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"service_id": id.String()})
}

func (h *AdminHandler) listServices(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	services, err := h.repo.ListServices(r.Context(), businessID, 200)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]map[string]any, 0, len(services))
	for _, s := range services {
		items = append(items, map[string]any{
			"service_id":       s.ID.String(),
			"name":             s.Name,
			"duration_minutes": s.DurationMinutes,
			"buffer_minutes":   s.BufferMinutes,
			"min_advance_days": s.MinAdvanceDays,
			"max_advance_days": s.MaxAdvanceDays,
			"is_active":        s.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

// Staff serves POST (create) and GET ?business_id= on /api/v1/admin/staff.
func (h *AdminHandler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createStaff(w, r)
	case http.MethodGet:
		h.listStaff(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID string `json:"business_id"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateStaff(r.Context(), model.Staff{
		BusinessID: businessID,
		Name:       req.Name,
		IsActive:   true,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"staff_id": id.String()})
}

func (h *AdminHandler) listStaff(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	staff, err := h.repo.ListStaff(r.Context(), businessID, 200)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]map[string]any, 0, len(staff))
	for _, s := range staff {
		items = append(items, map[string]any{
			"staff_id":  s.ID.String(),
			"name":      s.Name,
			"is_active": s.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": items})
}

// Assign serves POST /api/v1/admin/staff/assign.
func (h *AdminHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		StaffID   string `json:"staff_id"`
		ServiceID string `json:"service_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	staffID, err := uuid.Parse(strings.TrimSpace(req.StaffID))
	if err != nil {
		http.Error(w, "invalid staff_id", http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}

	if err := h.repo.AssignStaffToService(r.Context(), staffID, serviceID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StaffHours serves PUT /api/v1/admin/staff/hours.
func (h *AdminHandler) StaffHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		BusinessID  string `json:"business_id"`
		StaffID     string `json:"staff_id"`
		Weekday     int    `json:"weekday"`
		IsWorking   bool   `json:"is_working"`
		StartMinute int    `json:"start_minute"`
		EndMinute   int    `json:"end_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	staffID, err := uuid.Parse(strings.TrimSpace(req.StaffID))
	if err != nil {
		http.Error(w, "invalid staff_id", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
		return
	}
	if req.IsWorking && req.StartMinute >= req.EndMinute {
		http.Error(w, "start_minute must be before end_minute", http.StatusBadRequest)
		return
	}

	err = h.repo.UpsertStaffHours(r.Context(), model.StaffHours{
		StaffID:     staffID,
		Weekday:     req.Weekday,
		IsWorking:   req.IsWorking,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.calendarChanged(r.Context(), businessID)
	w.WriteHeader(http.StatusNoContent)
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
