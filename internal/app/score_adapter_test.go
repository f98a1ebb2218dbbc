package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScoreUsesFreshCache(t *testing.T) {
	donors := &fakeDonorRepo{}
	scorer := &stubScorer{scores: map[uuid.UUID]float64{}}
	adapter := NewScoreAdapter(scorer, donors, testLogger(), 6*time.Hour)

	d := donors.add(testDonor(uuid.Nil, "Ravi", "+911"))
	d.LastScore = sql.NullFloat64{Float64: 0.83, Valid: true}
	d.ScoreCachedAt = sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}

	got := adapter.Score(context.Background(), d)
	assert.Equal(t, 0.83, got)
	assert.Equal(t, 0, scorer.calls, "fresh cache avoids the remote call")
}

func TestScoreRefreshesStaleCache(t *testing.T) {
	donors := &fakeDonorRepo{}
	d := donors.add(testDonor(uuid.Nil, "Ravi", "+911"))
	d.LastScore = sql.NullFloat64{Float64: 0.83, Valid: true}
	d.ScoreCachedAt = sql.NullTime{Time: time.Now().Add(-7 * time.Hour), Valid: true}

	scorer := &stubScorer{scores: map[uuid.UUID]float64{d.ID: 0.4}}
	adapter := NewScoreAdapter(scorer, donors, testLogger(), 6*time.Hour)

	got := adapter.Score(context.Background(), d)
	assert.Equal(t, 0.4, got)
	assert.Equal(t, 1, scorer.calls)
}

func TestScoreDegradesToZeroOnFailure(t *testing.T) {
	donors := &fakeDonorRepo{}
	d := donors.add(testDonor(uuid.Nil, "Ravi", "+911"))

	scorer := &stubScorer{err: errors.New("service down")}
	adapter := NewScoreAdapter(scorer, donors, testLogger(), 6*time.Hour)

	assert.Equal(t, float64(0), adapter.Score(context.Background(), d),
		"a scorer failure must not exclude the donor")
}
