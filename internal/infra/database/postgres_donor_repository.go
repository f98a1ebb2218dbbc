package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bloodbridge_bot/internal/domain/blood"
	"bloodbridge_bot/internal/domain/donor"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array and driver registration
)

// Custom errors specific to the donor repository
var ErrDonorNotFound = fmt.Errorf("donor not found")
var ErrDuplicatePhone = fmt.Errorf("donor with this phone already exists")

const donorColumns = `id, name, phone, blood_group, city, latitude, longitude,
	availability_status, onboarding_state, dnd_status, snooze_until, cooldown_until, last_donation,
	notifications_received, donations_confirmed, streak_count, points,
	last_score, score_cached_at, created_at, updated_at`

type PostgresDonorRepository struct {
	db *sql.DB
}

func NewPostgresDonorRepository(db *sql.DB) *PostgresDonorRepository {
	return &PostgresDonorRepository{db: db}
}

func scanDonor(row interface{ Scan(...any) error }) (*donor.Donor, error) {
	d := donor.Donor{}
	err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &d.BloodGroup, &d.City, &d.Latitude, &d.Longitude,
		&d.Availability, &d.Onboarding, &d.DoNotDisturb, &d.SnoozeUntil, &d.CooldownUntil, &d.LastDonation,
		&d.NotificationsReceived, &d.DonationsConfirmed, &d.StreakCount, &d.Points,
		&d.LastScore, &d.ScoreCachedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDonorNotFound
		}
		return nil, fmt.Errorf("error scanning donor row: %w", err)
	}
	return &d, nil
}

func scanDonors(rows *sql.Rows) ([]*donor.Donor, error) {
	donors := make([]*donor.Donor, 0)
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donor rows: %w", err)
	}
	return donors, nil
}

func (r *PostgresDonorRepository) Create(ctx context.Context, d *donor.Donor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Availability == "" {
		d.Availability = donor.Available
	}
	if d.Onboarding == "" {
		d.Onboarding = donor.Complete
	}
	query := `INSERT INTO donors (id, name, phone, blood_group, city, latitude, longitude, availability_status, onboarding_state, dnd_status)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.Name, d.Phone, d.BloodGroup, d.City, d.Latitude, d.Longitude, d.Availability, d.Onboarding, d.DoNotDisturb,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "donors_phone_key") {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("error creating donor: %w", err)
	}
	return nil
}

func (r *PostgresDonorRepository) Update(ctx context.Context, d *donor.Donor) error {
	query := `UPDATE donors
               SET name = $1, blood_group = $2, city = $3, availability_status = $4, onboarding_state = $5, updated_at = NOW()
               WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, d.Name, d.BloodGroup, d.City, d.Availability, d.Onboarding, d.ID)
	if err != nil {
		return fmt.Errorf("error updating donor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}

func (r *PostgresDonorRepository) SetDoNotDisturb(ctx context.Context, id uuid.UUID, dnd bool) error {
	query := `UPDATE donors SET dnd_status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, dnd, id)
	if err != nil {
		return fmt.Errorf("error setting do-not-disturb: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}

func (r *PostgresDonorRepository) Snooze(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `UPDATE donors SET snooze_until = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, until, id)
	if err != nil {
		return fmt.Errorf("error snoozing donor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}

func (r *PostgresDonorRepository) GetByID(ctx context.Context, id uuid.UUID) (*donor.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE id = $1`
	return scanDonor(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresDonorRepository) GetByPhone(ctx context.Context, phone string) (*donor.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE phone = $1`
	return scanDonor(r.db.QueryRowContext(ctx, query, phone))
}

// FindEligible applies the full eligibility invariant in SQL so the
// result never contains a donor the engine would have to filter out again.
func (r *PostgresDonorRepository) FindEligible(ctx context.Context, group blood.Group, city string, excludeIDs []uuid.UUID) ([]*donor.Donor, error) {
	ids := make([]string, len(excludeIDs))
	for i, id := range excludeIDs {
		ids[i] = id.String()
	}
	query := `SELECT ` + donorColumns + `
               FROM donors
               WHERE blood_group = $1 AND city ILIKE $2
                 AND availability_status = 'available' AND dnd_status = false
                 AND (snooze_until IS NULL OR snooze_until < NOW())
                 AND (cooldown_until IS NULL OR cooldown_until < NOW())
                 AND NOT (id = ANY($3::uuid[]))
               LIMIT 50`
	rows, err := r.db.QueryContext(ctx, query, group, city, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying eligible donors: %w", err)
	}
	defer rows.Close()
	return scanDonors(rows)
}

func (r *PostgresDonorRepository) IncrementNotified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE donors SET notifications_received = notifications_received + 1, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error incrementing notification counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}

func (r *PostgresDonorRepository) UpdateScoreCache(ctx context.Context, id uuid.UUID, score float64, cachedAt time.Time) error {
	query := `UPDATE donors SET last_score = $1, score_cached_at = $2, updated_at = NOW() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, score, cachedAt, id)
	if err != nil {
		return fmt.Errorf("error caching donor score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}

// SweepEligible flips cooldown-expired donors back to available and
// returns them in the same statement, so the reactivation job cannot
// observe a donor it did not also flip.
func (r *PostgresDonorRepository) SweepEligible(ctx context.Context, now time.Time) ([]*donor.Donor, error) {
	query := `UPDATE donors
               SET availability_status = 'available', cooldown_until = NULL, updated_at = NOW()
               WHERE availability_status = 'unavailable'
                 AND dnd_status = false
                 AND cooldown_until IS NOT NULL AND cooldown_until <= $1
               RETURNING ` + donorColumns
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error sweeping eligible donors: %w", err)
	}
	defer rows.Close()
	return scanDonors(rows)
}

func (r *PostgresDonorRepository) ListInactive(ctx context.Context, lastDonationBefore time.Time) ([]*donor.Donor, error) {
	query := `SELECT ` + donorColumns + `
               FROM donors
               WHERE availability_status = 'available' AND dnd_status = false
                 AND (snooze_until IS NULL OR snooze_until < NOW())
                 AND (last_donation IS NULL OR last_donation < $1)`
	rows, err := r.db.QueryContext(ctx, query, lastDonationBefore)
	if err != nil {
		return nil, fmt.Errorf("error querying inactive donors: %w", err)
	}
	defer rows.Close()
	return scanDonors(rows)
}

func (r *PostgresDonorRepository) AwardPoints(ctx context.Context, id uuid.UUID, points int) error {
	query := `UPDATE donors SET points = points + $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, points, id)
	if err != nil {
		return fmt.Errorf("error awarding points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDonorNotFound
	}
	return nil
}
