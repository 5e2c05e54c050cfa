package model

import "time"

// Appointment statuses. Booking only ever produces StatusScheduled; the
// other transitions belong to maintenance operations.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

type Appointment struct {
	ID           string
	PatientID    string
	DoctorID     string
	StartTime    time.Time
	Reason       string
	Notes        string
	Status       string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UpdatedBy    string
}

// Doctor is read-only directory data as far as booking is concerned.
type Doctor struct {
	ID        string
	Name      string
	Specialty string
}
