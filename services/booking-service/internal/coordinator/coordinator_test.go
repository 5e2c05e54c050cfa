package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
)

// fakeStore is an in-memory Store double. It is safe for concurrent use so
// the race test below can hammer it from multiple goroutines.
type fakeStore struct {
	mu     sync.Mutex
	appts  []model.Appointment
	failed error // returned by CreateScheduled when set
}

func (s *fakeStore) ListScheduledForDoctorOnDay(_ context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.DoctorID != doctorID || a.Status != model.StatusScheduled {
			continue
		}
		if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) CreateScheduled(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed != nil {
		return s.failed
	}
	s.appts = append(s.appts, *appt)
	return nil
}

func (s *fakeStore) count(doctorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appts {
		if a.DoctorID == doctorID {
			n++
		}
	}
	return n
}

func (s *fakeStore) seed(doctorID string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts = append(s.appts, model.Appointment{
		ID:        "seed",
		DoctorID:  doctorID,
		PatientID: "p-seed",
		StartTime: start,
		Status:    model.StatusScheduled,
	})
}

var discard = slog.New(slog.DiscardHandler)

func at(h, m int) time.Time {
	return time.Date(2026, 9, 14, h, m, 0, 0, time.UTC)
}

func request(doctorID string, start time.Time) Request {
	return Request{
		PatientID: "p-1",
		DoctorID:  doctorID,
		StartTime: start,
		Reason:    "checkup",
		Notes:     "bring previous labs",
		BookedBy:  "reception",
	}
}

func TestBook_Success(t *testing.T) {
	store := &fakeStore{}
	c := New(store, discard)

	res := c.Book(context.Background(), request("doc-1", at(10, 0)))
	if res.Outcome != OutcomeBooked {
		t.Fatalf("expected booked, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Appointment == nil {
		t.Fatal("booked result must carry the appointment")
	}
	if res.Appointment.Status != model.StatusScheduled {
		t.Fatalf("expected status scheduled, got %q", res.Appointment.Status)
	}
	if res.Appointment.Notes != "bring previous labs" {
		t.Fatalf("notes must be attached verbatim, got %q", res.Appointment.Notes)
	}
	if res.Appointment.UpdatedBy != "reception" {
		t.Fatalf("expected actor tag, got %q", res.Appointment.UpdatedBy)
	}
	if res.Appointment.ID == "" {
		t.Fatal("expected an id assigned on persistence")
	}
	if store.count("doc-1") != 1 {
		t.Fatalf("expected exactly one record, got %d", store.count("doc-1"))
	}
}

func TestBook_ExactBoundaryAllowed(t *testing.T) {
	store := &fakeStore{}
	store.seed("doc-1", at(10, 0))
	c := New(store, discard)

	res := c.Book(context.Background(), request("doc-1", at(10, 30)))
	if res.Outcome != OutcomeBooked {
		t.Fatalf("a gap of exactly 30 minutes must be allowed, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestBook_InsideWindowConflicts(t *testing.T) {
	for _, start := range []time.Time{at(10, 15), at(9, 45), at(10, 29)} {
		store := &fakeStore{}
		store.seed("doc-1", at(10, 0))
		c := New(store, discard)

		res := c.Book(context.Background(), request("doc-1", start))
		if res.Outcome != OutcomeConflict {
			t.Fatalf("start %s: expected conflict, got %s", start.Format("15:04"), res.Outcome)
		}
		if res.Reason == "" {
			t.Fatal("conflict result must explain itself")
		}
		if store.count("doc-1") != 1 {
			t.Fatalf("conflict path must not create records, count=%d", store.count("doc-1"))
		}
	}
}

func TestBook_DifferentDoctorsNeverConflict(t *testing.T) {
	store := &fakeStore{}
	store.seed("doc-1", at(10, 0))
	c := New(store, discard)

	res := c.Book(context.Background(), request("doc-2", at(10, 0)))
	if res.Outcome != OutcomeBooked {
		t.Fatalf("identical time for a different doctor must book, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestBook_StoreFailure(t *testing.T) {
	store := &fakeStore{failed: errors.New("connection reset")}
	c := New(store, discard)

	res := c.Book(context.Background(), request("doc-1", at(10, 0)))
	if res.Outcome != OutcomeStoreFailure {
		t.Fatalf("expected store failure, got %s", res.Outcome)
	}
	if res.Appointment != nil {
		t.Fatal("failed booking must not expose an appointment")
	}
	if store.count("doc-1") != 0 {
		t.Fatalf("no appointment may be visible after a failed write, count=%d", store.count("doc-1"))
	}
}

func TestBook_StoreSeparationViolationIsConflict(t *testing.T) {
	store := &fakeStore{failed: ErrSeparationViolated}
	c := New(store, discard)

	res := c.Book(context.Background(), request("doc-1", at(10, 0)))
	if res.Outcome != OutcomeConflict {
		t.Fatalf("store-level separation violation must surface as conflict, got %s", res.Outcome)
	}
}

func TestBook_TruncatesToMinute(t *testing.T) {
	store := &fakeStore{}
	c := New(store, discard)

	start := time.Date(2026, 9, 14, 10, 0, 42, 999, time.UTC)
	res := c.Book(context.Background(), request("doc-1", start))
	if res.Outcome != OutcomeBooked {
		t.Fatalf("expected booked, got %s", res.Outcome)
	}
	if !res.Appointment.StartTime.Equal(at(10, 0)) {
		t.Fatalf("expected minute granularity, got %s", res.Appointment.StartTime)
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	store := &fakeStore{}
	c := New(store, discard)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Book(context.Background(), request("doc-1", at(14, 0)))
		}(i)
	}
	wg.Wait()

	booked := 0
	for _, res := range results {
		if res.Outcome == OutcomeBooked {
			booked++
		} else if res.Outcome != OutcomeConflict {
			t.Fatalf("unexpected outcome %s", res.Outcome)
		}
	}
	if booked != 1 {
		t.Fatalf("exactly one concurrent caller may win the slot, got %d", booked)
	}
	if store.count("doc-1") != 1 {
		t.Fatalf("expected one persisted record, got %d", store.count("doc-1"))
	}
}
