package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinicbook-io/clinicbook/libs/httpx"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/conflict"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/coordinator"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/storage"
)

// ActorHeader carries the actor tag recorded on writes. Identity is supplied
// by an upstream system; this service stores the tag verbatim.
const ActorHeader = "X-Requested-By"

// Booker makes the booking decision. Satisfied by coordinator.Coordinator.
type Booker interface {
	Book(ctx context.Context, req coordinator.Request) coordinator.Result
}

// AppointmentStore covers the handler's read and maintenance operations.
type AppointmentStore interface {
	ListForDoctorOnDay(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error)
	ListScheduledForDoctorOnDay(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error)
	Cancel(ctx context.Context, appointmentID, reason, actor string) (time.Time, error)
}

type BookingHandler struct {
	coord  Booker
	appts  AppointmentStore
	logger *slog.Logger
	now    func() time.Time
}

func NewBookingHandler(coord Booker, appts AppointmentStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coord: coord, appts: appts, logger: logger, now: time.Now}
}

type createAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	StartTime string `json:"start_time"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

type createAppointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelAppointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	StartTime     string `json:"start_time"`
	Reason        string `json:"reason"`
	Notes         string `json:"notes,omitempty"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := decodeJSON[createAppointmentRequest](w, r)
	if !ok {
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.PatientID == "" || req.DoctorID == "" {
		httpx.Error(w, http.StatusBadRequest, "patient_id and doctor_id are required")
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid start_time")
		return
	}

	res := h.coord.Book(r.Context(), coordinator.Request{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: startTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
		BookedBy:  strings.TrimSpace(r.Header.Get(ActorHeader)),
	})

	switch res.Outcome {
	case coordinator.OutcomeBooked:
		httpx.JSON(w, http.StatusCreated, createAppointmentResponse{
			AppointmentID: res.Appointment.ID,
			Status:        res.Appointment.Status,
			StartTime:     res.Appointment.StartTime.UTC().Format(time.RFC3339),
		})
	case coordinator.OutcomeConflict:
		httpx.Error(w, http.StatusConflict, res.Reason)
	default:
		httpx.Error(w, http.StatusServiceUnavailable, res.Reason)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := decodeJSON[cancelAppointmentRequest](w, r)
	if !ok {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		httpx.Error(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	actor := strings.TrimSpace(r.Header.Get(ActorHeader))
	if actor == "" {
		actor = "booking-api"
	}
	cancelledAt, err := h.appts.Cancel(r.Context(), req.AppointmentID, strings.TrimSpace(req.Reason), actor)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			httpx.Error(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, storage.ErrNotCancellable):
			httpx.Error(w, http.StatusConflict, "appointment cannot be cancelled")
		default:
			h.logger.Error("cancel failed", "err", err, "appointment_id", req.AppointmentID)
			httpx.Error(w, http.StatusServiceUnavailable, "the cancellation could not be saved")
		}
		return
	}

	httpx.JSON(w, http.StatusOK, cancelAppointmentResponse{
		AppointmentID: req.AppointmentID,
		Status:        model.StatusCancelled,
		CancelledAt:   cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doctorID, day, ok := doctorDayParams(w, r)
	if !ok {
		return
	}
	dayStart, dayEnd := conflict.DayWindow(day)

	appts, err := h.appts.ListForDoctorOnDay(r.Context(), doctorID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err, "doctor_id", doctorID)
		httpx.Error(w, http.StatusServiceUnavailable, "failed to list appointments")
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := appointmentItem{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			Reason:        appt.Reason,
			Notes:         appt.Notes,
			Status:        appt.Status,
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	httpx.JSON(w, http.StatusOK, items)
}

type slotItem struct {
	StartTime string `json:"start_time"`
}

// Slots lists candidate start times on a day that would pass the separation
// rule, for picker UIs. Clinic hours default to 09:00-17:00 UTC and can be
// overridden per request.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doctorID, day, ok := doctorDayParams(w, r)
	if !ok {
		return
	}

	step := 30 * time.Minute
	if v := strings.TrimSpace(r.URL.Query().Get("step_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 120 {
			httpx.Error(w, http.StatusBadRequest, "invalid step_minutes")
			return
		}
		step = time.Duration(n) * time.Minute
	}

	windowStart, windowEnd, ok := clinicHours(w, r, day)
	if !ok {
		return
	}

	dayStart, dayEnd := conflict.DayWindow(day)
	existing, err := h.appts.ListScheduledForDoctorOnDay(r.Context(), doctorID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("schedule fetch failed", "err", err, "doctor_id", doctorID)
		httpx.Error(w, http.StatusServiceUnavailable, "failed to load the doctor's schedule")
		return
	}

	starts := conflict.OpenStarts(windowStart, windowEnd, step, existing, h.now().UTC())
	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{StartTime: s.UTC().Format(time.RFC3339)})
	}
	httpx.JSON(w, http.StatusOK, items)
}

func doctorDayParams(w http.ResponseWriter, r *http.Request) (string, time.Time, bool) {
	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if doctorID == "" || dateStr == "" {
		httpx.Error(w, http.StatusBadRequest, "doctor_id and date are required")
		return "", time.Time{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return "", time.Time{}, false
	}
	return doctorID, day, true
}

func clinicHours(w http.ResponseWriter, r *http.Request, day time.Time) (time.Time, time.Time, bool) {
	openStr := strings.TrimSpace(r.URL.Query().Get("open"))
	if openStr == "" {
		openStr = "09:00"
	}
	closeStr := strings.TrimSpace(r.URL.Query().Get("close"))
	if closeStr == "" {
		closeStr = "17:00"
	}
	openClock, err := time.Parse("15:04", openStr)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid open time (want HH:MM)")
		return time.Time{}, time.Time{}, false
	}
	closeClock, err := time.Parse("15:04", closeStr)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid close time (want HH:MM)")
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), openClock.Hour(), openClock.Minute(), 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), closeClock.Hour(), closeClock.Minute(), 0, 0, time.UTC)
	if !end.After(start) {
		httpx.Error(w, http.StatusBadRequest, "close must be after open")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
