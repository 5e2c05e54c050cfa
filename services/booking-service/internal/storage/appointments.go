package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook-io/clinicbook/libs/db"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/conflict"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/coordinator"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/outbox"
)

// ErrNotCancellable is returned when a cancel targets an appointment that is
// neither scheduled nor already cancelled (e.g. completed).
var ErrNotCancellable = errors.New("appointment cannot be cancelled")

const appointmentColumns = `id, patient_id, doctor_id, start_time, reason, notes, status,
	cancelled_at, COALESCE(cancel_reason, ''), created_at, updated_at, updated_by`

// AppointmentRepository persists appointments and, in the same transaction,
// the outbox events describing each state change.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AppointmentRepository) ListScheduledForDoctorOnDay(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
			AND status = 'scheduled'
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, doctorID, dayStart, dayEnd)
}

func (r *AppointmentRepository) ListForDoctorOnDay(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, doctorID, dayStart, dayEnd)
}

// CreateScheduled inserts the appointment and its booked event atomically.
// It serializes writers per doctor with a transaction-scoped advisory lock
// and re-checks the separation rule while holding it, so two instances
// racing for overlapping slots cannot both commit. A losing writer gets
// coordinator.ErrSeparationViolated and nothing is persisted.
func (r *AppointmentRepository) CreateScheduled(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appt.DoctorID); err != nil {
		return err
	}

	dayStart, dayEnd := conflict.DayWindow(appt.StartTime)
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
				AND status = 'scheduled'
				AND start_time >= $2
				AND start_time < $3
				AND ABS(EXTRACT(EPOCH FROM (start_time - $4))) < $5
		)
	`, appt.DoctorID, dayStart, dayEnd, appt.StartTime, conflict.MinSeparation.Seconds()).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return coordinator.ErrSeparationViolated
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, start_time, reason, notes, status, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.StartTime, appt.Reason, appt.Notes,
		appt.Status, appt.CreatedAt, appt.UpdatedAt, appt.UpdatedBy)
	if err != nil {
		return err
	}

	// The booked event feeds patient-facing messages downstream, so it
	// carries the doctor's display name, not just the id.
	var doctorName string
	err = tx.QueryRow(ctx, `SELECT name FROM doctors WHERE id = $1`, appt.DoctorID).Scan(&doctorName)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"doctor_name":    doctorName,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"reason":         appt.Reason,
		"booked_by":      appt.UpdatedBy,
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Cancel moves a scheduled appointment to cancelled and emits the matching
// event. Cancelling an already-cancelled appointment is a no-op that returns
// the original cancellation time.
func (r *AppointmentRepository) Cancel(ctx context.Context, appointmentID, reason, actor string) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var appt model.Appointment
	var cancelledAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID).Scan(
		&appt.ID, &appt.PatientID, &appt.DoctorID, &appt.StartTime, &appt.Reason, &appt.Notes,
		&appt.Status, &cancelledAt, &appt.CancelReason, &appt.CreatedAt, &appt.UpdatedAt, &appt.UpdatedBy,
	)
	if err != nil {
		return time.Time{}, err
	}

	if appt.Status == model.StatusCancelled && cancelledAt != nil {
		return *cancelledAt, tx.Commit(ctx)
	}
	if appt.Status != model.StatusScheduled {
		return time.Time{}, ErrNotCancellable
	}

	var at time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2,
			updated_at = now(),
			updated_by = $3
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason, actor).Scan(&at)
	if err != nil {
		return time.Time{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"cancelled_at":   at.UTC().Format(time.RFC3339),
		"reason":         reason,
	})
	if err != nil {
		return time.Time{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return time.Time{}, err
	}

	return at, tx.Commit(ctx)
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var cancelledAt *time.Time
		if err := rows.Scan(
			&appt.ID, &appt.PatientID, &appt.DoctorID, &appt.StartTime, &appt.Reason, &appt.Notes,
			&appt.Status, &cancelledAt, &appt.CancelReason, &appt.CreatedAt, &appt.UpdatedAt, &appt.UpdatedBy,
		); err != nil {
			return nil, err
		}
		appt.CancelledAt = cancelledAt
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
