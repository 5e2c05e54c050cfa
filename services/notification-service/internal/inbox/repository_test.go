package inbox

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExecer replays the dedupe insert: first (event_id, event_type) pair
// inserts one row, a repeat inserts zero.
type fakeExecer struct {
	seen map[string]bool
}

func (f *fakeExecer) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	key := fmt.Sprintf("%v|%v", args[0], args[1])
	if f.seen[key] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	f.seen[key] = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestRecord_DedupesPerEventType(t *testing.T) {
	repo := &Repository{db: &fakeExecer{seen: map[string]bool{}}}
	ctx := context.Background()

	// Same id for both event types, as happens when the event id falls back
	// to the message key (the appointment id).
	ok, err := repo.Record(ctx, "appt-1", "booking.appointment.booked.v1")
	if err != nil || !ok {
		t.Fatalf("first booked event: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Record(ctx, "appt-1", "booking.appointment.cancelled.v1")
	if err != nil || !ok {
		t.Fatalf("cancelled event with the same id must not be shadowed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Record(ctx, "appt-1", "booking.appointment.booked.v1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if ok {
		t.Fatal("replayed booked event should be reported as a duplicate")
	}
}
