// Package coordinator centralizes the decision of whether a new appointment
// may be created. Callers never inspect a doctor's schedule themselves; they
// hand the request to Book and branch on the outcome.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/conflict"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
)

// ErrSeparationViolated is returned by Store.CreateScheduled when the store's
// own separation guarantee rejects the insert. The coordinator reports it as
// a conflict, keeping the outcome set closed.
var ErrSeparationViolated = errors.New("minimum separation violated")

// Store is the persistence collaborator. Implementations must treat
// CreateScheduled as all-or-nothing: on error, no record is visible.
type Store interface {
	ListScheduledForDoctorOnDay(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error)
	CreateScheduled(ctx context.Context, appt *model.Appointment) error
}

type Outcome int

const (
	OutcomeBooked Outcome = iota
	OutcomeConflict
	OutcomeStoreFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBooked:
		return "booked"
	case OutcomeConflict:
		return "conflict"
	case OutcomeStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Result is a value, never an error: both rejection paths are routine
// business outcomes the caller is expected to branch on.
type Result struct {
	Outcome     Outcome
	Reason      string
	Appointment *model.Appointment // set only when booked
}

type Request struct {
	PatientID string
	DoctorID  string
	StartTime time.Time
	Reason    string
	Notes     string
	BookedBy  string // actor tag recorded on the appointment
}

type Coordinator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// Book runs check-then-insert; the per-doctor lock makes that sequence a
	// critical section within this process. The Postgres store additionally
	// re-checks under an advisory lock so concurrent instances cannot both
	// pass.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  map[string]*sync.Mutex{},
	}
}

// Book decides whether the requested appointment may be created and, if so,
// persists exactly one new record with status scheduled. On either rejection
// path no record is created.
func (c *Coordinator) Book(ctx context.Context, req Request) Result {
	unlock := c.lockDoctor(req.DoctorID)
	defer unlock()

	start := req.StartTime.UTC().Truncate(time.Minute)
	dayStart, dayEnd := conflict.DayWindow(start)

	existing, err := c.store.ListScheduledForDoctorOnDay(ctx, req.DoctorID, dayStart, dayEnd)
	if err != nil {
		c.logger.Error("schedule fetch failed", "err", err, "doctor_id", req.DoctorID)
		return Result{
			Outcome: OutcomeStoreFailure,
			Reason:  "could not load the doctor's schedule",
		}
	}

	if hit := conflict.FirstViolation(start, existing); hit != nil {
		return conflictResult(hit)
	}

	now := c.now().UTC()
	appt := &model.Appointment{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: start,
		Reason:    req.Reason,
		Notes:     req.Notes,
		Status:    model.StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: actorOrDefault(req.BookedBy),
	}

	if err := c.store.CreateScheduled(ctx, appt); err != nil {
		if errors.Is(err, ErrSeparationViolated) {
			// Another writer won the slot between our fetch and the insert.
			return Result{
				Outcome: OutcomeConflict,
				Reason: fmt.Sprintf("doctor %s already has an appointment within %d minutes of %s",
					req.DoctorID, int(conflict.MinSeparation.Minutes()), start.Format(time.RFC3339)),
			}
		}
		c.logger.Error("appointment create failed", "err", err, "doctor_id", req.DoctorID, "appointment_id", appt.ID)
		return Result{
			Outcome: OutcomeStoreFailure,
			Reason:  "the appointment could not be saved",
		}
	}

	return Result{Outcome: OutcomeBooked, Appointment: appt}
}

func conflictResult(hit *model.Appointment) Result {
	return Result{
		Outcome: OutcomeConflict,
		Reason: fmt.Sprintf("requested time is within %d minutes of an existing appointment at %s",
			int(conflict.MinSeparation.Minutes()), hit.StartTime.UTC().Format(time.RFC3339)),
	}
}

func (c *Coordinator) lockDoctor(doctorID string) func() {
	c.mu.Lock()
	l := c.locks[doctorID]
	if l == nil {
		l = &sync.Mutex{}
		c.locks[doctorID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "booking-api"
	}
	return actor
}
