package donor

import (
	"database/sql"
	"time"

	"bloodbridge_bot/internal/domain/blood"

	"github.com/google/uuid"
)

// Availability is the coarse donor state toggled by donation and the
// daily eligibility sweep.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

// Donor represents a registered blood donor.
// Corresponds to the 'donors' table.
type Donor struct {
	ID                    uuid.UUID
	Name                  string
	Phone                 string
	BloodGroup            blood.Group
	City                  string
	Latitude              sql.NullFloat64
	Longitude             sql.NullFloat64
	Availability          Availability
	Onboarding            OnboardingState
	DoNotDisturb          bool
	SnoozeUntil           sql.NullTime
	CooldownUntil         sql.NullTime
	LastDonation          sql.NullTime
	NotificationsReceived int
	DonationsConfirmed    int
	StreakCount           int
	Points                int
	LastScore             sql.NullFloat64
	ScoreCachedAt         sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Eligible reports whether the donor may be notified for a new request:
// available, not on do-not-disturb, and any snooze or cooldown has passed.
func (d *Donor) Eligible(now time.Time) bool {
	if d.Availability != Available || d.DoNotDisturb {
		return false
	}
	if d.SnoozeUntil.Valid && d.SnoozeUntil.Time.After(now) {
		return false
	}
	if d.CooldownUntil.Valid && d.CooldownUntil.Time.After(now) {
		return false
	}
	return true
}

// HasCoordinates reports whether both latitude and longitude are known.
func (d *Donor) HasCoordinates() bool {
	return d.Latitude.Valid && d.Longitude.Valid
}
