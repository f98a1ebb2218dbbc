package emergency

import (
	"database/sql"
	"time"

	"bloodbridge_bot/internal/domain/blood"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of an emergency request.
type RequestStatus string

const (
	StatusActive    RequestStatus = "active"
	StatusFulfilled RequestStatus = "fulfilled"
	StatusClosed    RequestStatus = "closed"
)

// RequestType distinguishes ad-hoc emergencies from scheduled bridge
// transfusion requests.
type RequestType string

const (
	TypeGeneral RequestType = "general"
	TypeBridge  RequestType = "bridge"
)

// Request represents one emergency blood request.
// Corresponds to the 'emergency_requests' table.
type Request struct {
	ID             uuid.UUID
	PatientName    string
	BloodGroup     blood.Group
	City           string
	HospitalName   string
	RequesterPhone string
	ShortCode      string // 4 digits, unique among active requests only
	Status         RequestStatus
	Type           RequestType
	BridgeID       uuid.NullUUID
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasCoordinates reports whether the hospital location is known.
func (r *Request) HasCoordinates() bool {
	return r.Latitude.Valid && r.Longitude.Valid
}
