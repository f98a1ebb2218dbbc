package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"bloodbridge_bot/internal/domain/bridge"
	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/emergency"
	"bloodbridge_bot/internal/domain/notify"
	"bloodbridge_bot/internal/domain/patient"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the bridge manager
var ErrDuplicateActiveBridgeRequest = errors.New("bridge already has an active transfusion request")
var ErrNoEligibleMembers = errors.New("no eligible members available in this bridge")

// BridgeService maintains rotating on-call donor pools per chronic
// patient and turns scheduled transfusion needs into bridge-typed
// emergency requests.
//
// Bridge requests arm no automatic escalation timer: a missed
// confirmation is re-asked by the daily due sweep (guarded by the
// one-active-request invariant) or by an operator escalation.
type BridgeService struct {
	bridges  bridge.Repository
	donors   donor.Repository
	patients patient.Repository
	requests emergency.Repository
	scores   *ScoreAdapter
	notifier notify.Notifier
	alerts   notify.AlertSink
	logger   *logrus.Logger
}

func NewBridgeService(
	bridges bridge.Repository,
	donors donor.Repository,
	patients patient.Repository,
	requests emergency.Repository,
	scores *ScoreAdapter,
	notifier notify.Notifier,
	alerts notify.AlertSink,
	logger *logrus.Logger,
) *BridgeService {
	return &BridgeService{
		bridges:  bridges,
		donors:   donors,
		patients: patients,
		requests: requests,
		scores:   scores,
		notifier: notifier,
		alerts:   alerts,
		logger:   logger,
	}
}

// Populate performs the one-time fill of a bridge with the best-ranked
// eligible donors not already serving in any bridge. Returns how many
// members were inserted.
func (s *BridgeService) Populate(ctx context.Context, bridgeID uuid.UUID, hintLat, hintLon *float64, count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("bridge member count must be positive, got %d", count)
	}

	b, err := s.bridges.GetByID(ctx, bridgeID)
	if err != nil {
		return 0, fmt.Errorf("failed to load bridge %s: %w", bridgeID, err)
	}
	bridged, err := s.bridges.ListBridgedDonorIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bridged donors: %w", err)
	}
	candidates, err := s.donors.FindEligible(ctx, b.BloodGroup, b.City, bridged)
	if err != nil {
		return 0, fmt.Errorf("failed to find donors for bridge %s: %w", bridgeID, err)
	}
	if len(candidates) == 0 {
		s.logger.Warnf("No donors found to populate bridge %s (%s, %s)", bridgeID, b.BloodGroup, b.City)
		return 0, nil
	}

	type scored struct {
		d        *donor.Donor
		score    float64
		distance float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, d := range candidates {
		c := scored{d: d, score: s.scores.Score(ctx, d), distance: math.Inf(1)}
		if hintLat != nil && hintLon != nil && d.HasCoordinates() {
			c.distance = distanceKm(*hintLat, *hintLon, d.Latitude.Float64, d.Longitude.Float64)
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].distance < ranked[j].distance
	})

	if len(ranked) > count {
		ranked = ranked[:count]
	}
	ids := make([]uuid.UUID, 0, len(ranked))
	for _, c := range ranked {
		ids = append(ids, c.d.ID)
	}
	if err := s.bridges.InsertMembers(ctx, bridgeID, ids); err != nil {
		return 0, fmt.Errorf("failed to insert members into bridge %s: %w", bridgeID, err)
	}
	s.logger.Infof("Populated bridge %s with %d donors", bridgeID, len(ids))
	return len(ids), nil
}

// RequestTransfusion creates the bridge's next transfusion request and
// notifies whichever member's turn it is. At most one request may be
// outstanding per bridge; the rotation slot of skipped (ineligible)
// members is not consumed.
func (s *BridgeService) RequestTransfusion(ctx context.Context, bridgeID uuid.UUID) error {
	b, err := s.bridges.GetByID(ctx, bridgeID)
	if err != nil {
		return fmt.Errorf("failed to load bridge %s: %w", bridgeID, err)
	}
	if b.ActiveRequestID.Valid {
		return fmt.Errorf("%w: bridge %s, request %s", ErrDuplicateActiveBridgeRequest, bridgeID, b.ActiveRequestID.UUID)
	}

	chosen, err := s.nextEligibleMember(ctx, b)
	if err != nil {
		return err
	}

	p, err := s.patients.GetByID(ctx, b.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient for bridge %s: %w", bridgeID, err)
	}

	shortCode, err := newShortCode(ctx, s.requests)
	if err != nil {
		return err
	}
	req := &emergency.Request{
		PatientName:    p.Name,
		BloodGroup:     b.BloodGroup,
		City:           b.City,
		RequesterPhone: "system",
		ShortCode:      shortCode,
		Status:         emergency.StatusActive,
		Type:           emergency.TypeBridge,
		BridgeID:       uuid.NullUUID{UUID: b.ID, Valid: true},
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return fmt.Errorf("failed to create bridge request for %s: %w", bridgeID, err)
	}
	if err := s.bridges.LinkActiveRequest(ctx, b.ID, req.ID); err != nil {
		// The bridge cannot track the request; close it so its short code
		// is released instead of leaving an orphan active with no donor.
		if closeErr := s.requests.UpdateStatus(ctx, req.ID, emergency.StatusActive, emergency.StatusClosed); closeErr != nil {
			s.logger.Errorf("Failed to close orphaned bridge request %s: %v", req.ID, closeErr)
		}
		return fmt.Errorf("failed to link request %s to bridge %s: %w", req.ID, bridgeID, err)
	}

	if err := s.requests.UpsertPendingResponse(ctx, chosen.ID, req.ID, sql.NullString{}, sql.NullTime{}); err != nil {
		return fmt.Errorf("failed to record response for member %s on request %s: %w", chosen.ID, req.ID, err)
	}
	if err := s.donors.IncrementNotified(ctx, chosen.ID); err != nil {
		s.logger.Warnf("Failed to increment notification counter for donor %s: %v", chosen.ID, err)
	}

	msg := fmt.Sprintf("Hi %s, it's your turn in the Blood Bridge for patient %s.\n\nYour help is needed for their scheduled transfusion. Please reply YES %s to confirm your availability.",
		chosen.Name, p.Name, shortCode)
	if err := s.notifier.Send(ctx, chosen.Phone, msg); err != nil {
		s.logger.Warnf("Failed to notify bridge member %s for request %s: %v", chosen.ID, req.ID, err)
	}
	s.logger.Infof("Bridge %s: notified member %s for transfusion request %s", bridgeID, chosen.ID, req.ID)
	return nil
}

// nextEligibleMember walks the member list in position order starting at
// the rotation pointer, wrapping around, and returns the first donor who
// currently satisfies the eligibility invariant.
func (s *BridgeService) nextEligibleMember(ctx context.Context, b *bridge.Bridge) (*donor.Donor, error) {
	members, err := s.bridges.ListActiveMembers(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of bridge %s: %w", b.ID, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: bridge %s is empty", ErrNoEligibleMembers, b.ID)
	}

	// Start at the first member whose position is at or past the pointer.
	start := 0
	for i, m := range members {
		if m.Position >= b.RotationPosition {
			start = i
			break
		}
	}

	now := time.Now()
	for i := 0; i < len(members); i++ {
		m := members[(start+i)%len(members)]
		d, err := s.donors.GetByID(ctx, m.DonorID)
		if err != nil {
			s.logger.Warnf("Failed to load bridge member donor %s: %v", m.DonorID, err)
			continue
		}
		if d.Eligible(now) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: bridge %s", ErrNoEligibleMembers, b.ID)
}

// TriggerDueBridgeRequests finds every bridge whose patient is due for a
// transfusion and has no outstanding request, and asks its rotation.
// Failures are contained per bridge so one bad bridge cannot block the
// sweep.
func (s *BridgeService) TriggerDueBridgeRequests(ctx context.Context) error {
	due, err := s.bridges.ListDue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list due bridges: %w", err)
	}
	if len(due) == 0 {
		s.logger.Info("No bridges due for a transfusion request")
		return nil
	}
	s.logger.Infof("Found %d bridge(s) due for a transfusion request", len(due))

	for _, b := range due {
		if err := s.RequestTransfusion(ctx, b.ID); err != nil {
			s.logger.Errorf("Failed to trigger transfusion request for bridge %s: %v", b.ID, err)
			if errors.Is(err, ErrNoEligibleMembers) {
				alert := fmt.Sprintf("Blood Bridge %s (%s) has no eligible members for a due transfusion. Escalate to a general emergency.", b.Name, b.City)
				if alertErr := s.alerts.Alert(ctx, alert); alertErr != nil {
					s.logger.Errorf("Failed to deliver bridge exhaustion alert for %s: %v", b.ID, alertErr)
				}
			}
		}
	}
	return nil
}
