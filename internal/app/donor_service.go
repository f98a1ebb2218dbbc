package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/notify"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// defaultSnoozeDays applies when a donor snoozes without naming a duration.
const defaultSnoozeDays = 30

// DonorService drives the conversational donor registration flow and the
// self-service notification preferences (do-not-disturb, snooze).
type DonorService struct {
	donors   donor.Repository
	notifier notify.Notifier
	logger   *logrus.Logger
}

func NewDonorService(donors donor.Repository, notifier notify.Notifier, logger *logrus.Logger) *DonorService {
	return &DonorService{donors: donors, notifier: notifier, logger: logger}
}

// StartRegistration creates a donor record in the first onboarding state
// and asks the opening question. The donor stays unavailable until the
// flow completes. Re-registering an existing phone replays the current
// question.
func (s *DonorService) StartRegistration(ctx context.Context, phone string) error {
	existing, err := s.donors.GetByPhone(ctx, phone)
	if err == nil {
		if existing.Onboarding == donor.Complete || existing.Onboarding == "" {
			s.send(ctx, phone, "You are already registered as a donor. Thank you for being part of the network!")
			return nil
		}
		s.send(ctx, phone, existing.Onboarding.Prompt())
		return nil
	}
	if !errors.Is(err, idb.ErrDonorNotFound) {
		return fmt.Errorf("failed to look up donor by phone: %w", err)
	}

	d := &donor.Donor{Phone: phone, Availability: donor.Unavailable, Onboarding: donor.AwaitingName}
	if err := s.donors.Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create donor record: %w", err)
	}
	s.logger.Infof("Started donor onboarding for %s", d.ID)
	s.send(ctx, phone, d.Onboarding.Prompt())
	return nil
}

// HandleOnboardingReply consumes one reply in an in-progress
// registration. Returns false when no onboarding is in progress for the
// phone, so the caller can route the message elsewhere.
func (s *DonorService) HandleOnboardingReply(ctx context.Context, phone, text string) (bool, error) {
	d, err := s.donors.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, idb.ErrDonorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up donor by phone: %w", err)
	}
	if d.Onboarding == donor.Complete || d.Onboarding == "" {
		return false, nil
	}

	if err := d.ApplyOnboardingReply(text); err != nil {
		// Invalid input: ask the same question again.
		s.logger.Infof("Rejected onboarding reply for donor %s: %v", d.ID, err)
		s.send(ctx, phone, fmt.Sprintf("Sorry, that didn't look right. %s", d.Onboarding.Prompt()))
		return true, nil
	}

	if err := s.donors.Update(ctx, d); err != nil {
		return true, fmt.Errorf("failed to update donor %s: %w", d.ID, err)
	}

	if d.Onboarding == donor.Complete {
		s.logger.Infof("Donor %s completed onboarding", d.ID)
		s.send(ctx, phone, fmt.Sprintf("Thank you, %s! You are now registered as a %s donor in %s. We will reach out when a patient near you needs help. Reply PAUSE anytime to stop notifications.", d.Name, d.BloodGroup, d.City))
	} else {
		s.send(ctx, phone, d.Onboarding.Prompt())
	}
	return true, nil
}

// HandlePause turns on do-not-disturb for the donor.
func (s *DonorService) HandlePause(ctx context.Context, phone string) error {
	d, ok, err := s.lookup(ctx, phone)
	if err != nil || !ok {
		return err
	}
	if err := s.donors.SetDoNotDisturb(ctx, d.ID, true); err != nil {
		return fmt.Errorf("failed to pause notifications for donor %s: %w", d.ID, err)
	}
	s.logger.Infof("Donor %s paused notifications", d.ID)
	s.send(ctx, phone, "Done. You will not receive donation requests until you reply RESUME.")
	return nil
}

// HandleResume clears do-not-disturb and any active snooze.
func (s *DonorService) HandleResume(ctx context.Context, phone string) error {
	d, ok, err := s.lookup(ctx, phone)
	if err != nil || !ok {
		return err
	}
	if err := s.donors.SetDoNotDisturb(ctx, d.ID, false); err != nil {
		return fmt.Errorf("failed to resume notifications for donor %s: %w", d.ID, err)
	}
	if err := s.donors.Snooze(ctx, d.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to clear snooze for donor %s: %w", d.ID, err)
	}
	s.logger.Infof("Donor %s resumed notifications", d.ID)
	s.send(ctx, phone, "Welcome back! You will be notified when a patient near you needs blood.")
	return nil
}

// HandleSnooze pauses notifications for the given number of days; zero
// means the default snooze window.
func (s *DonorService) HandleSnooze(ctx context.Context, phone string, days int) error {
	d, ok, err := s.lookup(ctx, phone)
	if err != nil || !ok {
		return err
	}
	if days <= 0 {
		days = defaultSnoozeDays
	}
	until := time.Now().AddDate(0, 0, days)
	if err := s.donors.Snooze(ctx, d.ID, until); err != nil {
		return fmt.Errorf("failed to snooze donor %s: %w", d.ID, err)
	}
	s.logger.Infof("Donor %s snoozed for %d days", d.ID, days)
	s.send(ctx, phone, fmt.Sprintf("Got it. You won't receive donation requests for the next %d days. Reply RESUME to come back earlier.", days))
	return nil
}

// lookup resolves the phone to a registered donor, telling unregistered
// senders how to sign up. ok is false when no donor exists.
func (s *DonorService) lookup(ctx context.Context, phone string) (*donor.Donor, bool, error) {
	d, err := s.donors.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, idb.ErrDonorNotFound) {
			s.send(ctx, phone, "We couldn't find your registration. Reply \"register donor\" to sign up.")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up donor by phone: %w", err)
	}
	return d, true, nil
}

func (s *DonorService) send(ctx context.Context, phone, message string) {
	if err := s.notifier.Send(ctx, phone, message); err != nil {
		s.logger.Warnf("Failed to send message to %s: %v", phone, err)
	}
}
