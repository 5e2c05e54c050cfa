package inbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbook-io/clinicbook/libs/db"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db execer
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{db: pool}
}

// Record inserts the event for dedupe and returns false when it was already
// seen, which consumers treat as "skip". Uniqueness is scoped to
// (event_id, event_type): the event id can fall back to the message key
// upstream, so a booked and a cancelled event about the same aggregate must
// not shadow each other.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id, event_type) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
