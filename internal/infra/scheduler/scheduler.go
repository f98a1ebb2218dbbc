package scheduler

import (
	"context"
	"time"

	"bloodbridge_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobScheduler owns the recurring donor lifecycle jobs: the daily
// eligibility sweep, the daily bridge due check, and the weekly
// inactive-donor nudge.
type JobScheduler struct {
	cronEngine        *cron.Cron
	engagement        *app.EngagementService
	bridges           *app.BridgeService
	logger            *logrus.Logger
	cronSpecSweep     string
	cronSpecBridgeDue string
	cronSpecNudge     string
}

func NewJobScheduler(
	engagement *app.EngagementService,
	bridges *app.BridgeService,
	logger *logrus.Logger,
	cronSpecSweep string, // e.g. "0 9 * * *" (9:00 AM daily)
	cronSpecBridgeDue string, // e.g. "0 8 * * *" (8:00 AM daily)
	cronSpecNudge string, // e.g. "0 10 * * 0" (10:00 AM Sundays)
) *JobScheduler {
	return &JobScheduler{
		cronEngine:        cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		engagement:        engagement,
		bridges:           bridges,
		logger:            logger,
		cronSpecSweep:     cronSpecSweep,
		cronSpecBridgeDue: cronSpecBridgeDue,
		cronSpecNudge:     cronSpecNudge,
	}
}

func (s *JobScheduler) Start() {
	s.logger.Info("Starting job scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecSweep, func() {
		s.logger.Info("Cron job triggered: donor eligibility sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.engagement.SweepEligibleDonors(ctx); err != nil {
			s.logger.Errorf("Donor eligibility sweep failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add eligibility sweep cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecBridgeDue, func() {
		s.logger.Info("Cron job triggered: due bridge transfusion check")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.bridges.TriggerDueBridgeRequests(ctx); err != nil {
			s.logger.Errorf("Due bridge check failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add bridge due check cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecNudge, func() {
		s.logger.Info("Cron job triggered: inactive donor nudge")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.engagement.NudgeInactiveDonors(ctx); err != nil {
			s.logger.Errorf("Inactive donor nudge failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add inactive donor nudge cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Job scheduler started with jobs.")
}

func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs to finish.
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}
