package database

import (
	"context"
	"database/sql"
	"fmt"

	"bloodbridge_bot/internal/domain/patient"

	"github.com/google/uuid"
)

var ErrPatientNotFound = fmt.Errorf("patient not found")

type PostgresPatientRepository struct {
	db *sql.DB
}

func NewPostgresPatientRepository(db *sql.DB) *PostgresPatientRepository {
	return &PostgresPatientRepository{db: db}
}

func scanPatient(row interface{ Scan(...any) error }) (*patient.Patient, error) {
	p := patient.Patient{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Phone, &p.City, &p.BloodGroup, &p.Onboarding,
		&p.FrequencyDays, &p.LastTransfusion, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("error scanning patient row: %w", err)
	}
	return &p, nil
}

func (r *PostgresPatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Onboarding == "" {
		p.Onboarding = patient.AwaitingName
	}
	query := `INSERT INTO patients (id, name, phone, city, blood_group, onboarding_state, frequency_days, last_transfusion)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Phone, p.City, p.BloodGroup, p.Onboarding, p.FrequencyDays, p.LastTransfusion,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating patient: %w", err)
	}
	return nil
}

func (r *PostgresPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	query := `SELECT id, name, phone, city, blood_group, onboarding_state, frequency_days, last_transfusion, created_at, updated_at
               FROM patients WHERE id = $1`
	return scanPatient(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresPatientRepository) GetByPhone(ctx context.Context, phone string) (*patient.Patient, error) {
	query := `SELECT id, name, phone, city, blood_group, onboarding_state, frequency_days, last_transfusion, created_at, updated_at
               FROM patients WHERE phone = $1`
	return scanPatient(r.db.QueryRowContext(ctx, query, phone))
}

func (r *PostgresPatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	query := `UPDATE patients
               SET name = $1, city = $2, blood_group = $3, onboarding_state = $4,
                   frequency_days = $5, last_transfusion = $6, updated_at = NOW()
               WHERE id = $7
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.City, p.BloodGroup, p.Onboarding, p.FrequencyDays, p.LastTransfusion, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPatientNotFound
		}
		return fmt.Errorf("error updating patient: %w", err)
	}
	return nil
}
