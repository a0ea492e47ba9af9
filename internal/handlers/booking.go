package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
	StaffID   string `json:"staff_id,omitempty"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id,omitempty"`
	CustomerID    string `json:"customer_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	BookedAt      string `json:"booked_at"`
	ConfirmedAt   string `json:"confirmed_at,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID.String(),
		BusinessID:    a.BusinessID.String(),
		ServiceID:     a.ServiceID.String(),
		CustomerID:    a.CustomerID.String(),
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		BookedAt:      a.BookedAt.UTC().Format(time.RFC3339),
		CancelReason:  a.CancelReason,
	}
	if a.StaffID != nil {
		item.StaffID = a.StaffID.String()
	}
	if a.ConfirmedAt != nil {
		item.ConfirmedAt = a.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if a.CompletedAt != nil {
		item.CompletedAt = a.CompletedAt.UTC().Format(time.RFC3339)
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Slots serves GET /api/v1/public/slots?business_id=&service_id=&date=&staff_id=
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID, err := uuid.Parse(q.Get("business_id"))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(q.Get("service_id"))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}
	date := strings.TrimSpace(q.Get("date"))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	req := booking.AvailabilityRequest{
		BusinessID: businessID,
		ServiceID:  serviceID,
		Date:       date,
	}
	if raw := strings.TrimSpace(q.Get("staff_id")); raw != "" {
		staffID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid staff_id", http.StatusBadRequest)
			return
		}
		req.StaffID = &staffID
	}

	slots, err := h.svc.AvailableSlots(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		item := slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Available: s.Available,
		}
		if s.StaffID != nil {
			item.StaffID = s.StaffID.String()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": items})
}

type createBookingRequest struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id"`
	StaffID    string `json:"staff_id"`
	CustomerID string `json:"customer_id"`
	StartTime  string `json:"start_time"`
}

// Create serves POST /api/v1/public/book. An Idempotency-Key header
// makes retries replay the original appointment instead of double
// booking.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}
	customerID, err := uuid.Parse(strings.TrimSpace(req.CustomerID))
	if err != nil {
		http.Error(w, "invalid customer_id", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	bookReq := booking.BookRequest{
		BusinessID:     businessID,
		ServiceID:      serviceID,
		CustomerID:     customerID,
		Start:          start,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	if raw := strings.TrimSpace(req.StaffID); raw != "" {
		staffID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid staff_id", http.StatusBadRequest)
			return
		}
		bookReq.StaffID = &staffID
	}

	appt, err := h.svc.Book(r.Context(), bookReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

// List serves GET /api/v1/appointments?business_id=&limit=
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	appts, err := h.svc.ListAppointments(r.Context(), businessID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

type transitionRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest, businessID, apptID uuid.UUID) (model.Appointment, error) {
		return h.svc.Confirm(r.Context(), businessID, apptID)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest, businessID, apptID uuid.UUID) (model.Appointment, error) {
		return h.svc.Complete(r.Context(), businessID, apptID)
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest, businessID, apptID uuid.UUID) (model.Appointment, error) {
		return h.svc.Cancel(r.Context(), businessID, apptID, req.Reason)
	})
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest, businessID, apptID uuid.UUID) (model.Appointment, error) {
		return h.svc.MarkNoShow(r.Context(), businessID, apptID)
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, apply func(transitionRequest, uuid.UUID, uuid.UUID) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, err := uuid.Parse(strings.TrimSpace(req.BusinessID))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return
	}
	apptID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		http.Error(w, "invalid appointment_id", http.StatusBadRequest)
		return
	}

	appt, err := apply(req, businessID, apptID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}
