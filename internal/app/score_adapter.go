package app

import (
	"context"
	"time"

	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/scoring"

	"github.com/sirupsen/logrus"
)

// ScoreAdapter wraps the external ranking capability with the per-donor
// cache stored on the donor row. A scorer failure degrades the donor's
// score to 0 (lowest priority) instead of dropping the candidate.
type ScoreAdapter struct {
	scorer   scoring.Scorer
	donors   donor.Repository
	logger   *logrus.Logger
	cacheTTL time.Duration
}

func NewScoreAdapter(scorer scoring.Scorer, donors donor.Repository, logger *logrus.Logger, cacheTTL time.Duration) *ScoreAdapter {
	return &ScoreAdapter{
		scorer:   scorer,
		donors:   donors,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Score returns the donor's ranking score in [0,1]. The cached value on
// the donor record wins while it is fresher than the TTL.
func (a *ScoreAdapter) Score(ctx context.Context, d *donor.Donor) float64 {
	now := time.Now()
	if d.LastScore.Valid && d.ScoreCachedAt.Valid && now.Sub(d.ScoreCachedAt.Time) < a.cacheTTL {
		a.logger.Debugf("Using cached score for donor %s", d.ID)
		return d.LastScore.Float64
	}

	features := scoring.Features{
		DonorID:               d.ID,
		StreakCount:           d.StreakCount,
		NotificationsReceived: d.NotificationsReceived,
		DonationsConfirmed:    d.DonationsConfirmed,
	}
	if d.LastDonation.Valid {
		t := d.LastDonation.Time
		features.LastDonation = &t
	}

	score, err := a.scorer.Score(ctx, features)
	if err != nil {
		a.logger.Warnf("Scorer failed for donor %s, treating score as 0: %v", d.ID, err)
		return 0
	}

	// Cache write is best-effort and off the request path.
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.donors.UpdateScoreCache(cacheCtx, d.ID, score, now); err != nil {
			a.logger.Warnf("Failed to cache score for donor %s: %v", d.ID, err)
		}
	}()

	return score
}
