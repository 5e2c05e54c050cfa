package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicbook-io/clinicbook/libs/config"
	"github.com/clinicbook-io/clinicbook/libs/db"
	"github.com/clinicbook-io/clinicbook/libs/httpx"
	"github.com/clinicbook-io/clinicbook/libs/kafkax"
	otelx "github.com/clinicbook-io/clinicbook/libs/otel"
	"github.com/clinicbook-io/clinicbook/libs/runtime"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/consumer"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/email"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/inbox"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/jobs"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/outbox"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/sms"
	"github.com/clinicbook-io/clinicbook/services/notification-service/internal/storage"
)

type bookedPayload struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	DoctorName    string `json:"doctor_name"`
	StartTime     string `json:"start_time"`
	Reason        string `json:"reason"`
}

type cancelledPayload struct {
	AppointmentID string `json:"appointment_id"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.DefaultConfig())
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	contactRepo := storage.NewContactRepository(pool)
	notificationRepo := storage.NewNotificationRepository(pool)
	jobRepo := jobs.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@clinicbook.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sms.NewNoopSender()
	}

	offsets := jobs.ParseOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"))
	maxAttempts := config.Int("REMINDER_MAX_ATTEMPTS", 5)

	worker := jobs.NewWorker(pool, jobRepo, outboxRepo, notificationRepo, emailSender, smsSender, logger, jobs.WorkerConfig{
		Interval:  config.Duration("REMINDER_POLL_INTERVAL", 5*time.Second),
		BatchSize: config.Int("REMINDER_BATCH_SIZE", 25),
		Backoff:   config.Duration("REMINDER_RETRY_BACKOFF", time.Minute),
	})
	go worker.Run(ctx)

	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	bookedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_BOOKED_TOPIC", "booking.appointment.booked.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload bookedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booked payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.PatientID == "" || payload.StartTime == "" {
			logger.Error("missing booked fields", "appointment_id", payload.AppointmentID)
			return nil
		}
		startTime, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err, "appointment_id", payload.AppointmentID)
			return nil
		}

		contact, ok, err := contactRepo.Get(ctx, payload.PatientID)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("no contact on file, skipping notifications", "patient_id", payload.PatientID)
			return nil
		}

		channel := "email"
		recipient := contact.Email
		if recipient == "" {
			channel = "sms"
			recipient = contact.Phone
		}
		if recipient == "" {
			logger.Warn("contact has no reachable channel", "patient_id", payload.PatientID)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		now := time.Now().UTC()
		base := jobs.Job{
			AppointmentID: payload.AppointmentID,
			PatientID:     payload.PatientID,
			Channel:       channel,
			Recipient:     recipient,
			MaxAttempts:   maxAttempts,
		}

		confirmation := base
		confirmation.SendAt = now
		confirmation.TemplateData = jobs.NewTemplateData(jobs.KindConfirmation, payload.StartTime, payload.DoctorName)
		if err := jobRepo.Insert(ctx, tx, confirmation); err != nil {
			return err
		}

		for _, offset := range offsets {
			sendAt := startTime.Add(-offset)
			if !sendAt.After(now) {
				continue
			}
			reminder := base
			reminder.SendAt = sendAt
			reminder.TemplateData = jobs.NewTemplateData(jobs.KindReminder, payload.StartTime, payload.DoctorName)
			if err := jobRepo.Insert(ctx, tx, reminder); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("reminder jobs scheduled", "appointment_id", payload.AppointmentID, "channel", channel)
		return nil
	})
	go bookedConsumer.Run(ctx)

	cancelledConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_CANCELLED_TOPIC", "booking.appointment.cancelled.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload cancelledPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancelled payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" {
			logger.Error("missing appointment_id on cancelled event")
			return nil
		}
		dropped, err := jobRepo.CancelForAppointment(ctx, payload.AppointmentID)
		if err != nil {
			return err
		}
		logger.Info("pending reminders cancelled", "appointment_id", payload.AppointmentID, "jobs", dropped)
		return nil
	})
	go cancelledConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	otelHandler := otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
