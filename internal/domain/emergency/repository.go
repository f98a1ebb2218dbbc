package emergency

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository defines operations for emergency requests and donor responses.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// GetActiveByShortCode resolves a short code to the active request
	// carrying it. Codes on fulfilled/closed requests do not resolve.
	GetActiveByShortCode(ctx context.Context, shortCode string) (*Request, error)

	// ActiveShortCodeExists reports whether any active request currently
	// holds the given short code.
	ActiveShortCodeExists(ctx context.Context, shortCode string) (bool, error)

	// UpdateStatus transitions a request from one status to another.
	// Returns ErrRequestNotFound (from the infra layer) when no row is in
	// the expected 'from' status, making transitions race-safe.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus) error

	// ListRespondedDonorIDs returns every donor that already has a
	// DonorResponse row for the request, regardless of status. Escalation
	// uses this to never re-notify a donor for the same request.
	ListRespondedDonorIDs(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error)

	// UpsertPendingResponse creates or resets the (donor, request) response
	// row to pending, with an optional OTP and expiry.
	UpsertPendingResponse(ctx context.Context, donorID, requestID uuid.UUID, otp sql.NullString, otpExpiresAt sql.NullTime) error

	// LatestPendingResponse returns the donor's most recent pending
	// response whose request is still active, together with that request.
	LatestPendingResponse(ctx context.Context, donorID uuid.UUID) (*DonorResponse, *Request, error)

	// MarkResponseDeclined flips a pending response to declined.
	MarkResponseDeclined(ctx context.Context, responseID uuid.UUID) error

	// CountAcceptedResponses returns how many responses for the request
	// reached accepted status. Used by operational checks; the confirmation
	// transaction guarantees this never exceeds one.
	CountAcceptedResponses(ctx context.Context, requestID uuid.UUID) (int, error)
}

// Confirmation is the read-back of a successfully finalized donation,
// produced inside the confirmation transaction.
type Confirmation struct {
	ResponseID     uuid.UUID
	RequestID      uuid.UUID
	DonorID        uuid.UUID
	DonorName      string
	DonorPhone     string
	PatientName    string
	RequesterPhone string
	RequestType    RequestType
	BridgeID       uuid.NullUUID
	ConfirmedAt    time.Time
}

// ConfirmationStore finalizes a donation in a single atomic transaction:
// row-lock the matching pending response, mark the donor unavailable with
// a cooldown, accept the response, fulfil the request, and rotate the
// bridge when the request is bridge-typed. Any failure rolls back all of it.
type ConfirmationStore interface {
	ConfirmDonation(ctx context.Context, donorPhone, otp string) (*Confirmation, error)
}
