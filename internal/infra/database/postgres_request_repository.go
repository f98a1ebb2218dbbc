package database

import (
	"context"
	"database/sql"
	"fmt"

	"bloodbridge_bot/internal/domain/emergency"

	"github.com/google/uuid"
)

// Custom errors specific to the request repository
var ErrRequestNotFound = fmt.Errorf("emergency request not found")
var ErrResponseNotFound = fmt.Errorf("donor response not found")

const requestColumns = `id, patient_name, blood_group, city, hospital_name,
	requested_by_phone, short_code, status, request_type, bridge_id,
	latitude, longitude, created_at, updated_at`

type PostgresRequestRepository struct {
	db *sql.DB
}

func NewPostgresRequestRepository(db *sql.DB) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: db}
}

func scanRequest(row interface{ Scan(...any) error }) (*emergency.Request, error) {
	req := emergency.Request{}
	err := row.Scan(
		&req.ID, &req.PatientName, &req.BloodGroup, &req.City, &req.HospitalName,
		&req.RequesterPhone, &req.ShortCode, &req.Status, &req.Type, &req.BridgeID,
		&req.Latitude, &req.Longitude, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("error scanning request row: %w", err)
	}
	return &req, nil
}

func (r *PostgresRequestRepository) Create(ctx context.Context, req *emergency.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	query := `INSERT INTO emergency_requests
               (id, patient_name, blood_group, city, hospital_name, requested_by_phone,
                short_code, status, request_type, bridge_id, latitude, longitude)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		req.ID, req.PatientName, req.BloodGroup, req.City, req.HospitalName, req.RequesterPhone,
		req.ShortCode, req.Status, req.Type, req.BridgeID, req.Latitude, req.Longitude,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating emergency request: %w", err)
	}
	return nil
}

func (r *PostgresRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*emergency.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM emergency_requests WHERE id = $1`
	return scanRequest(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRequestRepository) GetActiveByShortCode(ctx context.Context, shortCode string) (*emergency.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM emergency_requests WHERE short_code = $1 AND status = 'active'`
	return scanRequest(r.db.QueryRowContext(ctx, query, shortCode))
}

func (r *PostgresRequestRepository) ActiveShortCodeExists(ctx context.Context, shortCode string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM emergency_requests WHERE short_code = $1 AND status = 'active')`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, shortCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking active short code: %w", err)
	}
	return exists, nil
}

// UpdateStatus is a conditional transition: the WHERE clause on the
// current status makes it a no-op (ErrRequestNotFound) when a concurrent
// actor already moved the request elsewhere.
func (r *PostgresRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to emergency.RequestStatus) error {
	query := `UPDATE emergency_requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("error updating request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) ListRespondedDonorIDs(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT donor_id FROM donor_responses WHERE request_id = $1`
	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("error querying responded donors: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning responded donor id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responded donor rows: %w", err)
	}
	return ids, nil
}

// UpsertPendingResponse relies on the (donor_id, request_id) unique
// constraint: re-notification resets the existing row instead of
// inserting a duplicate.
func (r *PostgresRequestRepository) UpsertPendingResponse(ctx context.Context, donorID, requestID uuid.UUID, otp sql.NullString, otpExpiresAt sql.NullTime) error {
	query := `INSERT INTO donor_responses (id, donor_id, request_id, status, otp, otp_expires_at)
               VALUES ($1, $2, $3, 'pending', $4, $5)
               ON CONFLICT (donor_id, request_id)
               DO UPDATE SET status = 'pending', otp = $4, otp_expires_at = $5, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, uuid.New(), donorID, requestID, otp, otpExpiresAt)
	if err != nil {
		return fmt.Errorf("error upserting donor response: %w", err)
	}
	return nil
}

func (r *PostgresRequestRepository) LatestPendingResponse(ctx context.Context, donorID uuid.UUID) (*emergency.DonorResponse, *emergency.Request, error) {
	query := `SELECT dr.id, dr.donor_id, dr.request_id, dr.status, dr.otp, dr.otp_expires_at,
                      dr.confirmed_at, dr.created_at, dr.updated_at,
                      er.id, er.patient_name, er.blood_group, er.city, er.hospital_name,
                      er.requested_by_phone, er.short_code, er.status, er.request_type, er.bridge_id,
                      er.latitude, er.longitude, er.created_at, er.updated_at
               FROM donor_responses dr
               JOIN emergency_requests er ON dr.request_id = er.id
               WHERE dr.donor_id = $1 AND dr.status = 'pending' AND er.status = 'active'
               ORDER BY dr.updated_at DESC
               LIMIT 1`
	resp := emergency.DonorResponse{}
	req := emergency.Request{}
	err := r.db.QueryRowContext(ctx, query, donorID).Scan(
		&resp.ID, &resp.DonorID, &resp.RequestID, &resp.Status, &resp.OTP, &resp.OTPExpiresAt,
		&resp.ConfirmedAt, &resp.CreatedAt, &resp.UpdatedAt,
		&req.ID, &req.PatientName, &req.BloodGroup, &req.City, &req.HospitalName,
		&req.RequesterPhone, &req.ShortCode, &req.Status, &req.Type, &req.BridgeID,
		&req.Latitude, &req.Longitude, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrResponseNotFound
		}
		return nil, nil, fmt.Errorf("error querying latest pending response: %w", err)
	}
	return &resp, &req, nil
}

func (r *PostgresRequestRepository) MarkResponseDeclined(ctx context.Context, responseID uuid.UUID) error {
	query := `UPDATE donor_responses SET status = 'declined', otp = NULL, updated_at = NOW()
               WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, responseID)
	if err != nil {
		return fmt.Errorf("error declining donor response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResponseNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) CountAcceptedResponses(ctx context.Context, requestID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM donor_responses WHERE request_id = $1 AND status = 'accepted'`
	var count int
	if err := r.db.QueryRowContext(ctx, query, requestID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting accepted responses: %w", err)
	}
	return count, nil
}
