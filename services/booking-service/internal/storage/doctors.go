package storage

import (
	"context"

	"github.com/clinicbook-io/clinicbook/libs/db"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
)

// DoctorRepository reads the doctor directory. Booking never writes it.
type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Get(ctx context.Context, doctorID string) (model.Doctor, error) {
	var doc model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&doc.ID, &doc.Name, &doc.Specialty)
	if err != nil {
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *DoctorRepository) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty
		FROM doctors
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Doctor
	for rows.Next() {
		var doc model.Doctor
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Specialty); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}
