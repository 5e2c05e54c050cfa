package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook-io/clinicbook/libs/db"
)

// NotificationRepository keeps a send log for auditing and support queries.
type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) RecordSent(ctx context.Context, tx pgx.Tx, appointmentID, channel, recipient, providerID string, sentAt time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notifications (appointment_id, channel, recipient, provider_id, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`, appointmentID, channel, recipient, providerID, sentAt)
	return err
}

func (r *NotificationRepository) CountSentForAppointment(ctx context.Context, appointmentID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE appointment_id = $1
	`, appointmentID).Scan(&n)
	return n, err
}
