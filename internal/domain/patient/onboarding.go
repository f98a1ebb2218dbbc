package patient

import (
	"errors"
	"strings"

	"bloodbridge_bot/internal/domain/blood"
)

// OnboardingState tracks how far a patient has progressed through
// conversational registration. It is an explicit state, not inferred
// from which fields happen to be filled in.
type OnboardingState string

const (
	AwaitingName       OnboardingState = "awaiting_name"
	AwaitingBloodGroup OnboardingState = "awaiting_blood_group"
	AwaitingCity       OnboardingState = "awaiting_city"
	Complete           OnboardingState = "complete"
)

var ErrOnboardingComplete = errors.New("patient onboarding already complete")

// Prompt returns the question to send the patient for the current state.
func (s OnboardingState) Prompt() string {
	switch s {
	case AwaitingName:
		return "What is the patient's full name?"
	case AwaitingBloodGroup:
		return "What is the patient's blood group (e.g. B+)?"
	case AwaitingCity:
		return "Which city is the patient in?"
	default:
		return ""
	}
}

// ApplyOnboardingReply consumes one reply in the registration
// conversation, stores it on the patient, and advances the state.
// A reply that fails validation leaves the state unchanged so the
// question can simply be asked again.
func (p *Patient) ApplyOnboardingReply(text string) error {
	text = strings.TrimSpace(text)

	switch p.Onboarding {
	case AwaitingName:
		if text == "" {
			return errors.New("patient name cannot be empty")
		}
		p.Name = text
		p.Onboarding = AwaitingBloodGroup
	case AwaitingBloodGroup:
		group, err := blood.Normalize(text)
		if err != nil {
			return err
		}
		p.BloodGroup = group
		p.Onboarding = AwaitingCity
	case AwaitingCity:
		if text == "" {
			return errors.New("patient city cannot be empty")
		}
		p.City = text
		p.Onboarding = Complete
	default:
		return ErrOnboardingComplete
	}
	return nil
}
