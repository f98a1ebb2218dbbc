package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/bridge"

	"github.com/google/uuid"
)

// Custom errors specific to the bridge repository
var ErrBridgeNotFound = fmt.Errorf("blood bridge not found")
var ErrBridgeEmpty = fmt.Errorf("blood bridge has no active members")

type PostgresBridgeRepository struct {
	db *sql.DB
}

func NewPostgresBridgeRepository(db *sql.DB) *PostgresBridgeRepository {
	return &PostgresBridgeRepository{db: db}
}

func (r *PostgresBridgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*bridge.Bridge, error) {
	query := `SELECT id, patient_id, name, city, blood_group, rotation_position, active_request_id, active, created_at, updated_at
               FROM blood_bridges WHERE id = $1`
	b := bridge.Bridge{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.PatientID, &b.Name, &b.City, &b.BloodGroup,
		&b.RotationPosition, &b.ActiveRequestID, &b.Active, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBridgeNotFound
		}
		return nil, fmt.Errorf("error getting bridge by ID: %w", err)
	}
	return &b, nil
}

func (r *PostgresBridgeRepository) ListActiveMembers(ctx context.Context, bridgeID uuid.UUID) ([]*bridge.Member, error) {
	query := `SELECT id, bridge_id, donor_id, position, status
               FROM bridge_members
               WHERE bridge_id = $1 AND status = 'active'
               ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("error querying bridge members: %w", err)
	}
	defer rows.Close()

	members := make([]*bridge.Member, 0)
	for rows.Next() {
		m := bridge.Member{}
		if err := rows.Scan(&m.ID, &m.BridgeID, &m.DonorID, &m.Position, &m.Status); err != nil {
			return nil, fmt.Errorf("error scanning bridge member row: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bridge member rows: %w", err)
	}
	return members, nil
}

func (r *PostgresBridgeRepository) InsertMembers(ctx context.Context, bridgeID uuid.UUID, donorIDs []uuid.UUID) error {
	if len(donorIDs) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for member insert: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO bridge_members (id, bridge_id, donor_id, position, status)
               VALUES ($1, $2, $3,
                       (SELECT COALESCE(MAX(position), 0) FROM bridge_members WHERE bridge_id = $2) + $4,
                       'active')
               ON CONFLICT (bridge_id, donor_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for member insert: %w", err)
	}
	defer stmt.Close()

	for i, donorID := range donorIDs {
		if _, err := stmt.ExecContext(ctx, uuid.New(), bridgeID, donorID, i+1); err != nil {
			return fmt.Errorf("error inserting bridge member %s: %w", donorID, err)
		}
	}

	return txn.Commit()
}

func (r *PostgresBridgeRepository) LinkActiveRequest(ctx context.Context, bridgeID, requestID uuid.UUID) error {
	query := `UPDATE blood_bridges SET active_request_id = $1, updated_at = NOW() WHERE id = $2 AND active_request_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, requestID, bridgeID)
	if err != nil {
		return fmt.Errorf("error linking active request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBridgeNotFound
	}
	return nil
}

// Rotate runs inside the caller's confirmation transaction. The row lock
// on blood_bridges keeps the pointer in step with who actually donated.
func (r *PostgresBridgeRepository) Rotate(ctx context.Context, tx *sql.Tx, bridgeID uuid.UUID) error {
	var position int
	err := tx.QueryRowContext(ctx,
		`SELECT rotation_position FROM blood_bridges WHERE id = $1 FOR UPDATE`, bridgeID,
	).Scan(&position)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBridgeNotFound
		}
		return fmt.Errorf("error locking bridge for rotation: %w", err)
	}

	var total int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bridge_members WHERE bridge_id = $1 AND status = 'active'`, bridgeID,
	).Scan(&total)
	if err != nil {
		return fmt.Errorf("error counting bridge members for rotation: %w", err)
	}
	if total == 0 {
		return ErrBridgeEmpty
	}

	next := (position % total) + 1
	_, err = tx.ExecContext(ctx,
		`UPDATE blood_bridges SET rotation_position = $1, active_request_id = NULL, updated_at = NOW() WHERE id = $2`,
		next, bridgeID,
	)
	if err != nil {
		return fmt.Errorf("error advancing bridge rotation: %w", err)
	}
	return nil
}

func (r *PostgresBridgeRepository) ListDue(ctx context.Context, now time.Time) ([]*bridge.Bridge, error) {
	query := `SELECT bb.id, bb.patient_id, bb.name, bb.city, bb.blood_group,
                      bb.rotation_position, bb.active_request_id, bb.active, bb.created_at, bb.updated_at
               FROM blood_bridges bb
               JOIN patients p ON bb.patient_id = p.id
               WHERE bb.active = true
                 AND bb.active_request_id IS NULL
                 AND p.last_transfusion IS NOT NULL
                 AND p.frequency_days IS NOT NULL
                 AND p.last_transfusion + p.frequency_days * INTERVAL '1 day' <= $1`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due bridges: %w", err)
	}
	defer rows.Close()

	bridges := make([]*bridge.Bridge, 0)
	for rows.Next() {
		b := bridge.Bridge{}
		if err := rows.Scan(
			&b.ID, &b.PatientID, &b.Name, &b.City, &b.BloodGroup,
			&b.RotationPosition, &b.ActiveRequestID, &b.Active, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning due bridge row: %w", err)
		}
		bridges = append(bridges, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due bridge rows: %w", err)
	}
	return bridges, nil
}

func (r *PostgresBridgeRepository) ListBridgedDonorIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT donor_id FROM bridge_members WHERE status = 'active'`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying bridged donors: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning bridged donor id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bridged donor rows: %w", err)
	}
	return ids, nil
}
