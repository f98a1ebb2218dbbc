package bridge

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository defines operations for bridges and their members.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Bridge, error)

	// ListActiveMembers returns the bridge's active members ordered by
	// position ascending.
	ListActiveMembers(ctx context.Context, bridgeID uuid.UUID) ([]*Member, error)

	// InsertMembers fills the bridge with the given donors at sequential
	// positions starting after the current maximum.
	InsertMembers(ctx context.Context, bridgeID uuid.UUID, donorIDs []uuid.UUID) error

	// LinkActiveRequest records the bridge's single outstanding request.
	LinkActiveRequest(ctx context.Context, bridgeID, requestID uuid.UUID) error

	// Rotate advances the rotation pointer by one (1-based, modulo the
	// active member count) and clears the active request link. It runs
	// inside the caller's transaction: rotation must only ever happen as
	// part of a confirmed donation.
	Rotate(ctx context.Context, tx *sql.Tx, bridgeID uuid.UUID) error

	// ListDue returns active bridges whose patient's last transfusion plus
	// frequency has elapsed and that have no outstanding request.
	ListDue(ctx context.Context, now time.Time) ([]*Bridge, error)

	// ListBridgedDonorIDs returns donors already holding an active
	// membership in any bridge.
	ListBridgedDonorIDs(ctx context.Context) ([]uuid.UUID, error)
}
