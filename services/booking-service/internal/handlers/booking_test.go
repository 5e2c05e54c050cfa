package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/coordinator"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/storage"
)

type fakeBooker struct {
	lastReq coordinator.Request
	result  coordinator.Result
}

func (b *fakeBooker) Book(_ context.Context, req coordinator.Request) coordinator.Result {
	b.lastReq = req
	return b.result
}

type fakeAppointmentStore struct {
	appts     []model.Appointment
	cancelErr error
}

func (s *fakeAppointmentStore) ListForDoctorOnDay(context.Context, string, time.Time, time.Time) ([]model.Appointment, error) {
	return s.appts, nil
}

func (s *fakeAppointmentStore) ListScheduledForDoctorOnDay(context.Context, string, time.Time, time.Time) ([]model.Appointment, error) {
	return s.appts, nil
}

func (s *fakeAppointmentStore) Cancel(context.Context, string, string, string) (time.Time, error) {
	if s.cancelErr != nil {
		return time.Time{}, s.cancelErr
	}
	return time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC), nil
}

var discard = slog.New(slog.DiscardHandler)

func bookingBody() string {
	return `{
		"patient_id": "p-1",
		"doctor_id": "doc-1",
		"start_time": "2026-09-14T10:00:00Z",
		"reason": "checkup",
		"notes": "first visit"
	}`
}

func TestCreate_Booked(t *testing.T) {
	booker := &fakeBooker{result: coordinator.Result{
		Outcome: coordinator.OutcomeBooked,
		Appointment: &model.Appointment{
			ID:        "appt-1",
			Status:    model.StatusScheduled,
			StartTime: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		},
	}}
	h := NewBookingHandler(booker, &fakeAppointmentStore{}, discard)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody()))
	req.Header.Set(ActorHeader, "reception")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createAppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.AppointmentID != "appt-1" || resp.Status != model.StatusScheduled {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if booker.lastReq.Notes != "first visit" {
		t.Fatalf("notes must pass through verbatim, got %q", booker.lastReq.Notes)
	}
	if booker.lastReq.BookedBy != "reception" {
		t.Fatalf("actor header must reach the coordinator, got %q", booker.lastReq.BookedBy)
	}
}

func TestCreate_Conflict(t *testing.T) {
	booker := &fakeBooker{result: coordinator.Result{
		Outcome: coordinator.OutcomeConflict,
		Reason:  "requested time is within 30 minutes of an existing appointment",
	}}
	h := NewBookingHandler(booker, &fakeAppointmentStore{}, discard)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody())))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "30 minutes") {
		t.Fatalf("conflict body should carry the reason: %s", rec.Body.String())
	}
}

func TestCreate_StoreFailure(t *testing.T) {
	booker := &fakeBooker{result: coordinator.Result{
		Outcome: coordinator.OutcomeStoreFailure,
		Reason:  "the appointment could not be saved",
	}}
	h := NewBookingHandler(booker, &fakeAppointmentStore{}, discard)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody())))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, &fakeAppointmentStore{}, discard)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing ids", `{"start_time": "2026-09-14T10:00:00Z"}`},
		{"blank doctor", `{"patient_id": "p-1", "doctor_id": "  ", "start_time": "2026-09-14T10:00:00Z"}`},
		{"bad start time", `{"patient_id": "p-1", "doctor_id": "doc-1", "start_time": "tomorrow"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCancel_NotCancellable(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, &fakeAppointmentStore{cancelErr: storage.ErrNotCancellable}, discard)

	rec := httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel",
		strings.NewReader(`{"appointment_id": "appt-1", "reason": "patient request"}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCancel_UnclassifiedStoreError(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, &fakeAppointmentStore{cancelErr: errors.New("connection reset")}, discard)

	rec := httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel",
		strings.NewReader(`{"appointment_id": "appt-1"}`)))

	// Unclassified store errors fold into the persistence-failure response.
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCancel_OK(t *testing.T) {
	h := NewBookingHandler(&fakeBooker{}, &fakeAppointmentStore{}, discard)

	rec := httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel",
		strings.NewReader(`{"appointment_id": "appt-1", "reason": "patient request"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cancelAppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Status != model.StatusCancelled || resp.CancelledAt == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSlots(t *testing.T) {
	store := &fakeAppointmentStore{appts: []model.Appointment{{
		DoctorID:  "doc-1",
		StartTime: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		Status:    model.StatusScheduled,
	}}}
	h := NewBookingHandler(&fakeBooker{}, store, discard)
	// Pin the clock before the requested day so no slot is dropped as past.
	h.now = func() time.Time { return time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/appointments/slots?doctor_id=doc-1&date=2026-09-14&open=09:30&close=11:00", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	// 09:30 and 10:30 are exactly 30 minutes from the 10:00 booking and
	// therefore open; 10:00 collides.
	want := []string{"2026-09-14T09:30:00Z", "2026-09-14T10:30:00Z"}
	if len(items) != len(want) {
		t.Fatalf("expected %v, got %+v", want, items)
	}
	for i := range want {
		if items[i].StartTime != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], items[i].StartTime)
		}
	}
}
