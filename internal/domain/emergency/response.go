package emergency

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ResponseStatus is the state of a single donor's reply to a request.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseDeclined ResponseStatus = "declined"
)

// DonorResponse tracks one donor's notification and reply for one request.
// At most one row exists per (donor_id, request_id); re-notification
// updates the row in place.
type DonorResponse struct {
	ID           uuid.UUID
	DonorID      uuid.UUID
	RequestID    uuid.UUID
	Status       ResponseStatus
	OTP          sql.NullString
	OTPExpiresAt sql.NullTime
	ConfirmedAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
