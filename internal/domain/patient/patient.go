package patient

import (
	"database/sql"
	"time"

	"bloodbridge_bot/internal/domain/blood"

	"github.com/google/uuid"
)

// Patient is a recurring transfusion patient, typically backed by a
// blood bridge. Corresponds to the 'patients' table.
type Patient struct {
	ID              uuid.UUID
	Name            string
	Phone           string
	City            string
	BloodGroup      blood.Group
	Onboarding      OnboardingState
	FrequencyDays   sql.NullInt32
	LastTransfusion sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
