package app

import (
	"context"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/notify"

	"github.com/sirupsen/logrus"
)

// EngagementService runs the scheduled donor lifecycle jobs: the daily
// eligibility sweep and the weekly inactive-donor nudge.
type EngagementService struct {
	donors        donor.Repository
	notifier      notify.Notifier
	logger        *logrus.Logger
	inactiveAfter time.Duration
}

func NewEngagementService(donors donor.Repository, notifier notify.Notifier, logger *logrus.Logger, inactiveAfter time.Duration) *EngagementService {
	return &EngagementService{
		donors:        donors,
		notifier:      notifier,
		logger:        logger,
		inactiveAfter: inactiveAfter,
	}
}

// SweepEligibleDonors reactivates donors whose cooldown has expired and
// tells them they are eligible again. The flip and the read happen in one
// repository operation; message delivery is best-effort per donor.
func (s *EngagementService) SweepEligibleDonors(ctx context.Context) error {
	reactivated, err := s.donors.SweepEligible(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("eligibility sweep failed: %w", err)
	}
	if len(reactivated) == 0 {
		s.logger.Info("No donors newly eligible today")
		return nil
	}
	s.logger.Infof("Reactivated %d donor(s) after cooldown", len(reactivated))

	for _, d := range reactivated {
		msg := fmt.Sprintf("Hi %s! Great news: your waiting period is over and you are eligible to save a life again. Your status is now Available. Thank you for being part of the BloodBridge community!", d.Name)
		if err := s.notifier.Send(ctx, d.Phone, msg); err != nil {
			s.logger.Warnf("Failed to send eligibility reminder to donor %s: %v", d.ID, err)
		}
	}
	return nil
}

// NudgeInactiveDonors sends a re-engagement message to available donors
// who have not donated within the configured window.
func (s *EngagementService) NudgeInactiveDonors(ctx context.Context) error {
	cutoff := time.Now().Add(-s.inactiveAfter)
	inactive, err := s.donors.ListInactive(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("inactive donor lookup failed: %w", err)
	}
	if len(inactive) == 0 {
		s.logger.Info("No inactive donors to nudge this week")
		return nil
	}
	s.logger.Infof("Nudging %d inactive donor(s)", len(inactive))

	for _, d := range inactive {
		msg := fmt.Sprintf("Hi %s! We miss you. Patients in your area are still in need of heroes like you. We hope you'll consider donating again soon.", d.Name)
		if err := s.notifier.Send(ctx, d.Phone, msg); err != nil {
			s.logger.Warnf("Failed to nudge donor %s: %v", d.ID, err)
		}
	}
	return nil
}
