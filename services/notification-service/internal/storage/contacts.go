package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook-io/clinicbook/libs/db"
)

// Contact is a patient's notification endpoints. Either field may be empty.
type Contact struct {
	PatientID string
	Email     string
	Phone     string
}

type ContactRepository struct {
	pool *db.Pool
}

func NewContactRepository(pool *db.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// Get returns the contact record for a patient; ok is false when none exists.
func (r *ContactRepository) Get(ctx context.Context, patientID string) (Contact, bool, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT patient_id, COALESCE(email, ''), COALESCE(phone, '')
		FROM patient_contacts
		WHERE patient_id = $1
	`, patientID).Scan(&c.PatientID, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	return c, true, nil
}
