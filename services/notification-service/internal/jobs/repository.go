package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook-io/clinicbook/libs/db"
	otelx "github.com/clinicbook-io/clinicbook/libs/otel"
)

// Job is one pending reminder or confirmation send.
type Job struct {
	ID            int64
	AppointmentID string
	PatientID     string
	Channel       string // "email" or "sms"
	Recipient     string
	SendAt        time.Time
	TemplateData  map[string]any
	Traceparent   string
	Tracestate    string
	Attempts      int
	MaxAttempts   int
	NextRunAt     time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, job Job) error {
	data, err := json.Marshal(job.TemplateData)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO reminder_jobs
			(appointment_id, patient_id, channel, recipient, send_at, template_data, traceparent, tracestate, max_attempts, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $5)
	`, job.AppointmentID, job.PatientID, job.Channel, job.Recipient, job.SendAt, data, traceparent, tracestate, maxAttempts)
	return err
}

// FetchDue claims up to limit due jobs. SKIP LOCKED keeps concurrent workers
// from sending the same reminder twice.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id, patient_id, channel, recipient, send_at, template_data,
			traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM reminder_jobs
		WHERE processed_at IS NULL
			AND cancelled_at IS NULL
			AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var job Job
		var data []byte
		if err := rows.Scan(
			&job.ID, &job.AppointmentID, &job.PatientID, &job.Channel, &job.Recipient, &job.SendAt,
			&data, &job.Traceparent, &job.Tracestate, &job.Attempts, &job.MaxAttempts, &job.NextRunAt,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &job.TemplateData); err != nil {
				return nil, err
			}
		}
		out = append(out, job)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET processed_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, nextRunAt time.Time, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2,
			next_run_at = $3,
			last_error = $4
		WHERE id = $1
	`, id, attempts, nextRunAt, reason)
	return err
}

// MarkExhausted parks a job permanently after its DLQ event is written.
func (r *Repository) MarkExhausted(ctx context.Context, tx pgx.Tx, id int64, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET processed_at = now(),
			last_error = $2
		WHERE id = $1
	`, id, reason)
	return err
}

// CancelForAppointment drops pending jobs when the appointment is cancelled.
func (r *Repository) CancelForAppointment(ctx context.Context, appointmentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET cancelled_at = now()
		WHERE appointment_id = $1
			AND processed_at IS NULL
			AND cancelled_at IS NULL
	`, appointmentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
