package app

import (
	"context"
	"errors"
	"fmt"

	"bloodbridge_bot/internal/domain/notify"
	"bloodbridge_bot/internal/domain/patient"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// PatientService drives the conversational patient registration flow.
type PatientService struct {
	patients patient.Repository
	notifier notify.Notifier
	logger   *logrus.Logger
}

func NewPatientService(patients patient.Repository, notifier notify.Notifier, logger *logrus.Logger) *PatientService {
	return &PatientService{patients: patients, notifier: notifier, logger: logger}
}

// StartRegistration creates a patient record in the first onboarding
// state and asks the opening question. Re-registering an existing phone
// just replays the current question.
func (s *PatientService) StartRegistration(ctx context.Context, phone string) error {
	existing, err := s.patients.GetByPhone(ctx, phone)
	if err == nil {
		if existing.Onboarding == patient.Complete {
			s.send(ctx, phone, "You are already registered as a patient with us.")
			return nil
		}
		s.send(ctx, phone, existing.Onboarding.Prompt())
		return nil
	}
	if !errors.Is(err, idb.ErrPatientNotFound) {
		return fmt.Errorf("failed to look up patient by phone: %w", err)
	}

	p := &patient.Patient{Phone: phone, Onboarding: patient.AwaitingName}
	if err := s.patients.Create(ctx, p); err != nil {
		return fmt.Errorf("failed to create patient record: %w", err)
	}
	s.logger.Infof("Started patient onboarding for %s", p.ID)
	s.send(ctx, phone, p.Onboarding.Prompt())
	return nil
}

// HandleOnboardingReply consumes one reply in an in-progress
// registration. Returns false when no onboarding is in progress for the
// phone, so the caller can route the message elsewhere.
func (s *PatientService) HandleOnboardingReply(ctx context.Context, phone, text string) (bool, error) {
	p, err := s.patients.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, idb.ErrPatientNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up patient by phone: %w", err)
	}
	if p.Onboarding == patient.Complete {
		return false, nil
	}

	if err := p.ApplyOnboardingReply(text); err != nil {
		// Invalid input: ask the same question again.
		s.logger.Infof("Rejected onboarding reply for patient %s: %v", p.ID, err)
		s.send(ctx, phone, fmt.Sprintf("Sorry, that didn't look right. %s", p.Onboarding.Prompt()))
		return true, nil
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return true, fmt.Errorf("failed to update patient %s: %w", p.ID, err)
	}

	if p.Onboarding == patient.Complete {
		s.logger.Infof("Patient %s completed onboarding", p.ID)
		s.send(ctx, phone, fmt.Sprintf("Thank you! %s is now registered. Our team will be in touch about setting up a Blood Bridge.", p.Name))
	} else {
		s.send(ctx, phone, p.Onboarding.Prompt())
	}
	return true, nil
}

func (s *PatientService) send(ctx context.Context, phone, message string) {
	if err := s.notifier.Send(ctx, phone, message); err != nil {
		s.logger.Warnf("Failed to send message to %s: %v", phone, err)
	}
}
