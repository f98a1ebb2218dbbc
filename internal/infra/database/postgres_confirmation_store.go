package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/emergency"

	"github.com/google/uuid"
)

// ErrConfirmationConflict means no pending, unexpired response on a
// still-active request matched the (phone, otp) pair. The donor is told
// to restart from the short code.
var ErrConfirmationConflict = fmt.Errorf("no matching pending confirmation for this OTP")

// BridgeRotator is the slice of the bridge repository the confirmation
// transaction needs: rotation always happens on the same tx that marks
// the donation confirmed.
type BridgeRotator interface {
	Rotate(ctx context.Context, tx *sql.Tx, bridgeID uuid.UUID) error
}

// PostgresConfirmationStore finalizes donations. The whole of
// ConfirmDonation runs under one transaction with row-level locks on the
// matching donor_responses row and its emergency_requests row, making it
// the serialization point between concurrent donor replies and
// escalation timers: whichever confirmation locks the request first
// fulfils it, and every later one fails the status predicate.
type PostgresConfirmationStore struct {
	db       *sql.DB
	bridges  BridgeRotator
	cooldown time.Duration
}

func NewPostgresConfirmationStore(db *sql.DB, bridges BridgeRotator, cooldown time.Duration) *PostgresConfirmationStore {
	return &PostgresConfirmationStore{db: db, bridges: bridges, cooldown: cooldown}
}

func (s *PostgresConfirmationStore) ConfirmDonation(ctx context.Context, donorPhone, otp string) (*emergency.Confirmation, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin confirmation transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	conf := emergency.Confirmation{}
	err = txn.QueryRowContext(ctx, `
		SELECT dr.id, dr.request_id, d.id, d.name, d.phone,
		       er.patient_name, er.requested_by_phone, er.request_type, er.bridge_id
		FROM donor_responses dr
		JOIN donors d ON dr.donor_id = d.id
		JOIN emergency_requests er ON dr.request_id = er.id
		WHERE d.phone = $1 AND dr.otp = $2 AND dr.otp_expires_at > NOW() AND dr.status = 'pending'
		  AND er.status = 'active'
		FOR UPDATE OF dr, er`,
		donorPhone, otp,
	).Scan(
		&conf.ResponseID, &conf.RequestID, &conf.DonorID, &conf.DonorName, &conf.DonorPhone,
		&conf.PatientName, &conf.RequesterPhone, &conf.RequestType, &conf.BridgeID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConfirmationConflict
		}
		return nil, fmt.Errorf("error locking donor response for confirmation: %w", err)
	}

	now := time.Now()
	conf.ConfirmedAt = now

	_, err = txn.ExecContext(ctx, `
		UPDATE donors
		SET last_donation = $1, availability_status = 'unavailable', cooldown_until = $2,
		    donations_confirmed = donations_confirmed + 1, streak_count = streak_count + 1,
		    updated_at = NOW()
		WHERE id = $3`,
		now, now.Add(s.cooldown), conf.DonorID,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating donor on confirmation: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		UPDATE donor_responses
		SET status = 'accepted', confirmed_at = $1, otp = NULL, updated_at = NOW()
		WHERE id = $2`,
		now, conf.ResponseID,
	)
	if err != nil {
		return nil, fmt.Errorf("error accepting donor response: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		UPDATE emergency_requests SET status = 'fulfilled', updated_at = NOW() WHERE id = $1`,
		conf.RequestID,
	)
	if err != nil {
		return nil, fmt.Errorf("error fulfilling emergency request: %w", err)
	}

	if conf.RequestType == emergency.TypeBridge && conf.BridgeID.Valid {
		if err := s.bridges.Rotate(ctx, txn, conf.BridgeID.UUID); err != nil {
			return nil, fmt.Errorf("error rotating bridge %s on confirmation: %w", conf.BridgeID.UUID, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation transaction: %w", err)
	}
	return &conf, nil
}
