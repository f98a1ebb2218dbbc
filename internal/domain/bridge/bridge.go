package bridge

import (
	"time"

	"bloodbridge_bot/internal/domain/blood"

	"github.com/google/uuid"
)

// Bridge is a standing rotation of donors assigned to one recurring
// patient. Corresponds to the 'blood_bridges' table.
type Bridge struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	Name             string
	City             string
	BloodGroup       blood.Group
	RotationPosition int // 1-based pointer into the active member list
	ActiveRequestID  uuid.NullUUID
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MemberStatus is the membership state of a donor within a bridge.
type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberRemoved MemberStatus = "removed"
)

// Member links a donor into a bridge at a fixed position.
// Position defines notification order.
type Member struct {
	ID       uuid.UUID
	BridgeID uuid.UUID
	DonorID  uuid.UUID
	Position int
	Status   MemberStatus
}
