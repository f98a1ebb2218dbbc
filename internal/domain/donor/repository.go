package donor

import (
	"context"
	"time"

	"bloodbridge_bot/internal/domain/blood"

	"github.com/google/uuid"
)

// Repository defines the operations for persisting and retrieving donors.
type Repository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	GetByPhone(ctx context.Context, phone string) (*Donor, error)

	// Update persists the profile fields a donor can change through
	// conversation: name, blood group, city, availability and onboarding
	// progress.
	Update(ctx context.Context, d *Donor) error

	// SetDoNotDisturb toggles the donor's permanent notification opt-out.
	SetDoNotDisturb(ctx context.Context, id uuid.UUID, dnd bool) error

	// Snooze pauses notifications for the donor until the given time.
	Snooze(ctx context.Context, id uuid.UUID, until time.Time) error

	// FindEligible returns donors matching the blood group and city
	// (case-insensitive) that satisfy the eligibility invariant, excluding
	// the given ids. The result is capped at 50 rows.
	FindEligible(ctx context.Context, group blood.Group, city string, excludeIDs []uuid.UUID) ([]*Donor, error)

	// IncrementNotified bumps the donor's notifications_received counter.
	IncrementNotified(ctx context.Context, id uuid.UUID) error

	// UpdateScoreCache stores a freshly computed ranking score on the donor row.
	UpdateScoreCache(ctx context.Context, id uuid.UUID, score float64, cachedAt time.Time) error

	// SweepEligible flips donors whose cooldown has expired back to
	// available and returns them, in a single operation.
	SweepEligible(ctx context.Context, now time.Time) ([]*Donor, error)

	// ListInactive returns available, contactable donors whose last
	// donation is older than the given cutoff (or who never donated).
	ListInactive(ctx context.Context, lastDonationBefore time.Time) ([]*Donor, error)

	// AwardPoints adds gamification points to the donor.
	AwardPoints(ctx context.Context, id uuid.UUID, points int) error
}
