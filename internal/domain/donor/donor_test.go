package donor

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEligible(t *testing.T) {
	now := time.Now()

	d := &Donor{Availability: Available}
	assert.True(t, d.Eligible(now))

	d = &Donor{Availability: Unavailable}
	assert.False(t, d.Eligible(now))

	d = &Donor{Availability: Available, DoNotDisturb: true}
	assert.False(t, d.Eligible(now))

	d = &Donor{
		Availability: Available,
		SnoozeUntil:  sql.NullTime{Time: now.Add(time.Hour), Valid: true},
	}
	assert.False(t, d.Eligible(now), "snoozed into the future")

	d = &Donor{
		Availability: Available,
		SnoozeUntil:  sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}
	assert.True(t, d.Eligible(now), "expired snooze no longer blocks")

	d = &Donor{
		Availability:  Available,
		CooldownUntil: sql.NullTime{Time: now.Add(24 * time.Hour), Valid: true},
	}
	assert.False(t, d.Eligible(now), "cooldown in the future blocks")

	d = &Donor{
		Availability:  Available,
		CooldownUntil: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}
	assert.True(t, d.Eligible(now), "elapsed cooldown no longer blocks")
}

func TestHasCoordinates(t *testing.T) {
	d := &Donor{}
	assert.False(t, d.HasCoordinates())

	d.Latitude = sql.NullFloat64{Float64: 17.4, Valid: true}
	assert.False(t, d.HasCoordinates(), "latitude alone is not enough")

	d.Longitude = sql.NullFloat64{Float64: 78.5, Valid: true}
	assert.True(t, d.HasCoordinates())
}
