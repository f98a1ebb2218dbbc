package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Features are the donor engagement signals fed to the external ranking
// capability.
type Features struct {
	DonorID               uuid.UUID
	LastDonation          *time.Time
	StreakCount           int
	NotificationsReceived int
	DonationsConfirmed    int
}

// Scorer is the external ranking capability. Implementations may fail or
// time out; callers degrade the donor's score to 0 rather than dropping
// the candidate.
type Scorer interface {
	Score(ctx context.Context, f Features) (float64, error)
}
