package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook-io/clinicbook/libs/db"
	otelx "github.com/clinicbook-io/clinicbook/libs/otel"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/email"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/outbox"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/sms"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/storage"
)

// Worker drains due reminder jobs, sends them, and records the result. A job
// that keeps failing is retried with backoff until max attempts, then parked
// with a DLQ event for operators.
type Worker struct {
	pool          *db.Pool
	repo          *Repository
	outbox        *outbox.Repository
	notifications *storage.NotificationRepository
	emailSender   email.Sender
	smsSender     sms.Sender
	logger        *slog.Logger
	interval      time.Duration
	batchSize     int
	backoff       time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, notifications *storage.NotificationRepository, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:          pool,
		repo:          repo,
		outbox:        outboxRepo,
		notifications: notifications,
		emailSender:   emailSender,
		smsSender:     smsSender,
		logger:        logger,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		backoff:       cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var processed []int64
	for _, job := range due {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		providerID, sendErr := w.send(jobCtx, job)
		if sendErr == nil {
			sentAt := time.Now().UTC()
			if err := w.notifications.RecordSent(jobCtx, tx, job.AppointmentID, job.Channel, job.Recipient, providerID, sentAt); err != nil {
				return err
			}
			if err := w.emitResult(jobCtx, tx, job, outbox.EventNotificationSent, map[string]any{
				"provider_id": providerID,
				"sent_at":     sentAt.Format(time.RFC3339),
			}); err != nil {
				return err
			}
			processed = append(processed, job.ID)
			continue
		}

		w.logger.Warn("reminder send failed", "err", sendErr, "job_id", job.ID, "channel", job.Channel)
		attempts := job.Attempts + 1
		if attempts >= job.MaxAttempts {
			reason := fmt.Sprintf("max attempts reached: %v", sendErr)
			if err := w.emitResult(jobCtx, tx, job, outbox.EventReminderDLQ, map[string]any{
				"error_reason": reason,
				"failed_at":    time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return err
			}
			if err := w.repo.MarkExhausted(ctx, tx, job.ID, reason); err != nil {
				return err
			}
			continue
		}

		nextRunAt := time.Now().UTC().Add(w.backoff)
		if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, nextRunAt, sendErr.Error()); err != nil {
			return err
		}
		if err := w.emitResult(jobCtx, tx, job, outbox.EventNotificationFailed, map[string]any{
			"error_reason": sendErr.Error(),
			"next_run_at":  nextRunAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	if err := w.repo.MarkProcessed(ctx, tx, processed); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) send(ctx context.Context, job Job) (string, error) {
	subject, body := Compose(job)
	switch job.Channel {
	case "email":
		return "smtp", w.emailSender.Send(job.Recipient, subject, body)
	case "sms":
		return w.smsSender.ProviderID(), w.smsSender.Send(ctx, job.Recipient, body)
	default:
		return "", fmt.Errorf("unknown channel %q", job.Channel)
	}
}

func (w *Worker) emitResult(ctx context.Context, tx pgx.Tx, job Job, eventType string, extra map[string]any) error {
	payload := map[string]any{
		"appointment_id": job.AppointmentID,
		"patient_id":     job.PatientID,
		"channel":        job.Channel,
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reminder_job",
		AggregateID:   job.AppointmentID,
		EventType:     eventType,
		Payload:       raw,
	})
}
