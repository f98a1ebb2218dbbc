package donor

import (
	"errors"
	"strings"

	"bloodbridge_bot/internal/domain/blood"
)

// OnboardingState tracks how far a donor has progressed through
// conversational registration. Donors stay unavailable until the state
// reaches Complete, so a half-registered row can never be matched.
type OnboardingState string

const (
	AwaitingName       OnboardingState = "awaiting_name"
	AwaitingBloodGroup OnboardingState = "awaiting_blood_group"
	AwaitingCity       OnboardingState = "awaiting_city"
	Complete           OnboardingState = "complete"
)

var ErrOnboardingComplete = errors.New("donor onboarding already complete")

// Prompt returns the question to send the donor for the current state.
func (s OnboardingState) Prompt() string {
	switch s {
	case AwaitingName:
		return "Welcome! What is your full name?"
	case AwaitingBloodGroup:
		return "What is your blood group (e.g. O+)?"
	case AwaitingCity:
		return "Which city do you live in?"
	default:
		return ""
	}
}

// ApplyOnboardingReply consumes one reply in the registration
// conversation, stores it on the donor, and advances the state. A reply
// that fails validation leaves the state unchanged so the question can
// simply be asked again. Reaching Complete flips the donor to available.
func (d *Donor) ApplyOnboardingReply(text string) error {
	text = strings.TrimSpace(text)

	switch d.Onboarding {
	case AwaitingName:
		if text == "" {
			return errors.New("donor name cannot be empty")
		}
		d.Name = text
		d.Onboarding = AwaitingBloodGroup
	case AwaitingBloodGroup:
		group, err := blood.Normalize(text)
		if err != nil {
			return err
		}
		d.BloodGroup = group
		d.Onboarding = AwaitingCity
	case AwaitingCity:
		if text == "" {
			return errors.New("donor city cannot be empty")
		}
		d.City = text
		d.Onboarding = Complete
		d.Availability = Available
	default:
		return ErrOnboardingComplete
	}
	return nil
}
