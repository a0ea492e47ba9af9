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

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/schedule"
)

type stubBackend struct {
	biz    model.Business
	svc    model.Service
	day    time.Time
	appts  map[uuid.UUID]model.Appointment
	idkeys map[string]uuid.UUID
}

func (s *stubBackend) date() string { return s.day.Format("2006-01-02") }

func (s *stubBackend) at(hour, min int) time.Time {
	return time.Date(s.day.Year(), s.day.Month(), s.day.Day(), hour, min, 0, 0, time.UTC)
}

func (s *stubBackend) GetBusiness(_ context.Context, id uuid.UUID) (model.Business, bool, error) {
	return s.biz, id == s.biz.ID, nil
}

func (s *stubBackend) GetService(_ context.Context, businessID, serviceID uuid.UUID) (model.Service, bool, error) {
	return s.svc, businessID == s.biz.ID && serviceID == s.svc.ID, nil
}

func (s *stubBackend) GetStaff(context.Context, uuid.UUID, uuid.UUID) (model.Staff, bool, error) {
	return model.Staff{}, false, nil
}

func (s *stubBackend) ListEligibleStaff(context.Context, uuid.UUID) ([]model.Staff, error) {
	return nil, nil
}

func (s *stubBackend) IsStaffAssigned(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubBackend) DayWindows(_ context.Context, _ model.Business, date string) ([]schedule.Window, error) {
	if date != s.date() {
		return nil, nil
	}
	return []schedule.Window{{Start: s.at(9, 0), End: s.at(17, 0)}}, nil
}

func (s *stubBackend) StaffDayWindows(ctx context.Context, biz model.Business, _ uuid.UUID, date string) ([]schedule.Window, error) {
	return s.DayWindows(ctx, biz, date)
}

func (s *stubBackend) Busy(context.Context, uuid.UUID, *uuid.UUID, time.Time, time.Time) ([]availability.Interval, error) {
	return nil, nil
}

func (s *stubBackend) Allow(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *stubBackend) InTx(_ context.Context, fn func(tx booking.Tx) error) error {
	return fn(s)
}

func (s *stubBackend) ListByBusiness(context.Context, uuid.UUID, int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubBackend) GetAppointment(_ context.Context, _ uuid.UUID, id uuid.UUID) (model.Appointment, bool, error) {
	a, ok := s.appts[id]
	return a, ok, nil
}

func (s *stubBackend) BusyIntervals(context.Context, uuid.UUID, *uuid.UUID, time.Time, time.Time) ([]availability.Interval, error) {
	return nil, nil
}

func (s *stubBackend) InsertAppointment(_ context.Context, a *model.Appointment) error {
	s.appts[a.ID] = *a
	return nil
}

func (s *stubBackend) AppointmentForUpdate(_ context.Context, _ uuid.UUID, id uuid.UUID) (model.Appointment, bool, error) {
	a, ok := s.appts[id]
	return a, ok, nil
}

func (s *stubBackend) UpdateAppointmentStatus(_ context.Context, a model.Appointment) error {
	s.appts[a.ID] = a
	return nil
}

func (s *stubBackend) LookupIdempotencyKey(_ context.Context, _ uuid.UUID, key string) (uuid.UUID, bool, error) {
	id, ok := s.idkeys[key]
	return id, ok, nil
}

func (s *stubBackend) SaveIdempotencyKey(_ context.Context, _ uuid.UUID, key string, id uuid.UUID) error {
	s.idkeys[key] = id
	return nil
}

func (s *stubBackend) InsertEvent(context.Context, outbox.Event) error { return nil }

func newTestHandler(t *testing.T) (*BookingHandler, *stubBackend) {
	t.Helper()
	backend := &stubBackend{
		biz: model.Business{ID: uuid.New(), Timezone: "UTC", AutoConfirm: true},
		day: time.Now().UTC().AddDate(0, 0, 1),
		svc: model.Service{
			ID:              uuid.New(),
			DurationMinutes: 30,
			BufferMinutes:   10,
			MaxAdvanceDays:  30,
			IsActive:        true,
		},
		appts:  map[uuid.UUID]model.Appointment{},
		idkeys: map[string]uuid.UUID{},
	}
	backend.svc.BusinessID = backend.biz.ID

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(backend, backend, backend, backend, backend, logger)
	return NewBookingHandler(svc, logger), backend
}

func TestSlots_OK(t *testing.T) {
	h, backend := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/public/slots?business_id="+backend.biz.ID.String()+
			"&service_id="+backend.svc.ID.String()+"&date="+backend.date(), nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Date  string `json:"date"`
		Slots []struct {
			StartTime string `json:"start_time"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != backend.date() {
		t.Fatalf("expected date %s, got %s", backend.date(), resp.Date)
	}
	if len(resp.Slots) != 31 {
		t.Fatalf("expected 31 slots, got %d", len(resp.Slots))
	}
	if want := backend.at(9, 0).Format(time.RFC3339); resp.Slots[0].StartTime != want {
		t.Fatalf("expected first slot %s, got %s", want, resp.Slots[0].StartTime)
	}
}

func TestSlots_BadRequest(t *testing.T) {
	h, backend := newTestHandler(t)

	cases := []string{
		"/api/v1/public/slots?business_id=nope&service_id=" + backend.svc.ID.String() + "&date=" + backend.date(),
		"/api/v1/public/slots?business_id=" + backend.biz.ID.String() + "&service_id=nope&date=" + backend.date(),
		"/api/v1/public/slots?business_id=" + backend.biz.ID.String() + "&service_id=" + backend.svc.ID.String() + "&date=March-10",
	}
	for _, url := range cases {
		rec := httptest.NewRecorder()
		h.Slots(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodPost, cases[0], nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestSlots_UnknownBusinessIs404(t *testing.T) {
	h, backend := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/public/slots?business_id="+uuid.NewString()+
			"&service_id="+backend.svc.ID.String()+"&date="+backend.date(), nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreate_OK(t *testing.T) {
	h, backend := newTestHandler(t)

	body := `{"business_id":"` + backend.biz.ID.String() + `","service_id":"` + backend.svc.ID.String() +
		`","customer_id":"` + uuid.NewString() + `","start_time":"` + backend.at(10, 0).Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "k1")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", resp.Status)
	}
	if _, err := uuid.Parse(resp.AppointmentID); err != nil {
		t.Fatalf("invalid appointment_id %q", resp.AppointmentID)
	}
	if len(backend.appts) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(backend.appts))
	}
}

func TestCreate_OutOfPolicyIs422(t *testing.T) {
	h, backend := newTestHandler(t)

	body := `{"business_id":"` + backend.biz.ID.String() + `","service_id":"` + backend.svc.ID.String() +
		`","customer_id":"` + uuid.NewString() + `","start_time":"` + backend.at(20, 0).Format(time.RFC3339) + `"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransitionEndpoints(t *testing.T) {
	h, backend := newTestHandler(t)

	// Seed a pending appointment directly.
	appt := model.Appointment{
		ID:         uuid.New(),
		BusinessID: backend.biz.ID,
		ServiceID:  backend.svc.ID,
		CustomerID: uuid.New(),
		StartTime:  backend.at(10, 0),
		EndTime:    backend.at(10, 30),
		Status:     model.StatusPending,
	}
	backend.appts[appt.ID] = appt

	post := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body)))
		return rec
	}
	ref := `"business_id":"` + backend.biz.ID.String() + `","appointment_id":"` + appt.ID.String() + `"`

	if rec := post(h.Confirm, `{`+ref+`}`); rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// Cancel without a reason is a 400.
	if rec := post(h.Cancel, `{`+ref+`}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("cancel without reason: expected 400, got %d", rec.Code)
	}
	if rec := post(h.Cancel, `{`+ref+`,"reason":"customer request"}`); rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// Completing a cancelled appointment is an invalid transition.
	if rec := post(h.Complete, `{`+ref+`}`); rec.Code != http.StatusConflict {
		t.Fatalf("complete after cancel: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	// Unknown appointment is a 404.
	miss := `{"business_id":"` + backend.biz.ID.String() + `","appointment_id":"` + uuid.NewString() + `"}`
	if rec := post(h.NoShow, miss); rec.Code != http.StatusNotFound {
		t.Fatalf("no-show unknown: expected 404, got %d", rec.Code)
	}
}
