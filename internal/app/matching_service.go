package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"bloodbridge_bot/internal/domain/blood"
	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/emergency"
	"bloodbridge_bot/internal/domain/notify"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the matching engine
var ErrNoEligibleDonors = errors.New("no eligible donors found for this request")
var ErrRequestNotActive = errors.New("emergency request is not active")

// CreateRequestParams carries the validated-at-the-boundary inputs for a
// new emergency request.
type CreateRequestParams struct {
	PatientName    string
	BloodGroup     string
	City           string
	HospitalName   string
	RequesterPhone string
	Latitude       *float64
	Longitude      *float64
}

// MatchingService orchestrates candidate selection, notification and
// timeout-driven escalation for emergency requests.
//
// Escalation policy: the automatic path notifies exactly one donor per
// cycle; the batch path (up to EscalationBatchSize donors in parallel) is
// reserved for operator-triggered escalation.
type MatchingService struct {
	donors   donor.Repository
	requests emergency.Repository
	scores   *ScoreAdapter
	notifier notify.Notifier
	alerts   notify.AlertSink
	timers   *EscalationTimers
	logger   *logrus.Logger

	escalationTimeout time.Duration
	batchSize         int

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

func NewMatchingService(
	donors donor.Repository,
	requests emergency.Repository,
	scores *ScoreAdapter,
	notifier notify.Notifier,
	alerts notify.AlertSink,
	timers *EscalationTimers,
	logger *logrus.Logger,
	escalationTimeout time.Duration,
	batchSize int,
) *MatchingService {
	return &MatchingService{
		donors:            donors,
		requests:          requests,
		scores:            scores,
		notifier:          notifier,
		alerts:            alerts,
		timers:            timers,
		logger:            logger,
		escalationTimeout: escalationTimeout,
		batchSize:         batchSize,
		inFlight:          make(map[uuid.UUID]bool),
	}
}

// CreateRequest validates and persists a new emergency request, informs
// the requester, and runs the first matching cycle.
func (s *MatchingService) CreateRequest(ctx context.Context, params CreateRequestParams) (*emergency.Request, error) {
	group, err := blood.Normalize(params.BloodGroup)
	if err != nil {
		return nil, err
	}

	shortCode, err := newShortCode(ctx, s.requests)
	if err != nil {
		return nil, err
	}

	req := &emergency.Request{
		PatientName:    params.PatientName,
		BloodGroup:     group,
		City:           params.City,
		HospitalName:   params.HospitalName,
		RequesterPhone: params.RequesterPhone,
		ShortCode:      shortCode,
		Status:         emergency.StatusActive,
		Type:           emergency.TypeGeneral,
	}
	if params.Latitude != nil && params.Longitude != nil {
		req.Latitude = sql.NullFloat64{Float64: *params.Latitude, Valid: true}
		req.Longitude = sql.NullFloat64{Float64: *params.Longitude, Valid: true}
	}
	if req.PatientName == "" {
		req.PatientName = "Unknown"
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create emergency request: %w", err)
	}
	s.logger.Infof("Created emergency request %s (%s, %s, code %s)", req.ID, req.BloodGroup, req.City, req.ShortCode)

	if req.RequesterPhone != "" {
		ack := fmt.Sprintf("Emergency request active! We are now searching for the best donor for %s.", req.PatientName)
		if err := s.notifier.Send(ctx, req.RequesterPhone, ack); err != nil {
			s.logger.Warnf("Failed to send request acknowledgement for %s: %v", req.ID, err)
		}
	}

	if err := s.FindAndNotify(ctx, req.ID); err != nil {
		s.logger.Errorf("Initial matching cycle failed for request %s: %v", req.ID, err)
	}
	return req, nil
}

// FindAndNotify runs one matching cycle: pick the single top-ranked
// eligible donor not yet contacted for this request, record a pending
// response, notify them, and arm the escalation timer. Cycles for the
// same request are coalesced; a cycle against a non-active request is a
// no-op.
func (s *MatchingService) FindAndNotify(ctx context.Context, requestID uuid.UUID) error {
	if !s.tryAcquire(requestID) {
		s.logger.Debugf("Matching cycle already in flight for request %s, skipping", requestID)
		return nil
	}
	defer s.release(requestID)

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if req.Status != emergency.StatusActive {
		// Lost the race against a confirmation or closure.
		s.timers.Cancel(requestID)
		s.logger.Infof("Request %s is %s, skipping matching cycle", requestID, req.Status)
		return nil
	}

	candidates, err := s.eligibleCandidates(ctx, req)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.flagExhausted(ctx, req)
		return nil
	}

	ranked := s.rank(ctx, req, candidates)
	best := ranked[0]
	if err := s.notifyCandidate(ctx, req, best.donor); err != nil {
		return err
	}
	s.logger.Infof("Notified donor %s for request %s (score %.2f)", best.donor.ID, req.ID, best.score)

	s.armEscalation(req.ID)
	return nil
}

// EscalateRequest is the operator-triggered equivalent of the timeout
// firing: it notifies a fresh batch of up to batchSize donors in
// parallel, then re-enters the automatic escalation loop.
func (s *MatchingService) EscalateRequest(ctx context.Context, requestID uuid.UUID) error {
	if !s.tryAcquire(requestID) {
		s.logger.Debugf("Matching cycle already in flight for request %s, skipping manual escalation", requestID)
		return nil
	}
	defer s.release(requestID)

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if req.Status != emergency.StatusActive {
		return ErrRequestNotActive
	}

	candidates, err := s.eligibleCandidates(ctx, req)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.flagExhausted(ctx, req)
		return ErrNoEligibleDonors
	}

	ranked := s.rank(ctx, req, candidates)
	if len(ranked) > s.batchSize {
		ranked = ranked[:s.batchSize]
	}

	// Record responses sequentially so store state is settled before any
	// message leaves; sends fan out with per-donor failure isolation.
	notified := make([]*donor.Donor, 0, len(ranked))
	for _, c := range ranked {
		if err := s.recordNotification(ctx, req, c.donor); err != nil {
			s.logger.Errorf("Failed to record response for donor %s on request %s: %v", c.donor.ID, req.ID, err)
			continue
		}
		notified = append(notified, c.donor)
	}
	if len(notified) == 0 {
		return fmt.Errorf("failed to record any responses for request %s", req.ID)
	}

	var wg sync.WaitGroup
	for _, d := range notified {
		wg.Add(1)
		go func(d *donor.Donor) {
			defer wg.Done()
			if err := s.notifier.Send(ctx, d.Phone, requestMessage(req)); err != nil {
				s.logger.Warnf("Failed to notify donor %s for request %s: %v", d.ID, req.ID, err)
			}
		}(d)
	}
	wg.Wait()
	s.logger.Infof("Manual escalation notified %d donors for request %s", len(notified), req.ID)

	s.armEscalation(req.ID)
	return nil
}

// RequestStatus returns a request together with how many of its
// responses reached accepted, for the operator surface. The confirmation
// transaction keeps that count at zero or one.
func (s *MatchingService) RequestStatus(ctx context.Context, requestID uuid.UUID) (*emergency.Request, int, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	accepted, err := s.requests.CountAcceptedResponses(ctx, requestID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count accepted responses for %s: %w", requestID, err)
	}
	return req, accepted, nil
}

// CloseRequest permanently closes a request and cancels its escalation.
func (s *MatchingService) CloseRequest(ctx context.Context, requestID uuid.UUID) error {
	err := s.requests.UpdateStatus(ctx, requestID, emergency.StatusActive, emergency.StatusClosed)
	if err != nil {
		if errors.Is(err, idb.ErrRequestNotFound) {
			return ErrRequestNotActive
		}
		return fmt.Errorf("failed to close request %s: %w", requestID, err)
	}
	// Cancel after the transition so a timer firing in between observes
	// the closed status and no-ops.
	s.timers.Cancel(requestID)
	s.logger.Infof("Request %s closed", requestID)
	return nil
}

func (s *MatchingService) eligibleCandidates(ctx context.Context, req *emergency.Request) ([]*donor.Donor, error) {
	excludeIDs, err := s.requests.ListRespondedDonorIDs(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responded donors for %s: %w", req.ID, err)
	}
	candidates, err := s.donors.FindEligible(ctx, req.BloodGroup, req.City, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find eligible donors for %s: %w", req.ID, err)
	}
	return candidates, nil
}

type rankedCandidate struct {
	donor    *donor.Donor
	score    float64
	distance float64
}

// rank orders candidates by score descending; equal scores fall back to
// ascending distance from the hospital when coordinates are known.
func (s *MatchingService) rank(ctx context.Context, req *emergency.Request, candidates []*donor.Donor) []rankedCandidate {
	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, d := range candidates {
		c := rankedCandidate{donor: d, score: s.scores.Score(ctx, d), distance: math.Inf(1)}
		if req.HasCoordinates() && d.HasCoordinates() {
			c.distance = distanceKm(req.Latitude.Float64, req.Longitude.Float64, d.Latitude.Float64, d.Longitude.Float64)
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].distance < ranked[j].distance
	})
	return ranked
}

func (s *MatchingService) recordNotification(ctx context.Context, req *emergency.Request, d *donor.Donor) error {
	if err := s.requests.UpsertPendingResponse(ctx, d.ID, req.ID, sql.NullString{}, sql.NullTime{}); err != nil {
		return err
	}
	if err := s.donors.IncrementNotified(ctx, d.ID); err != nil {
		s.logger.Warnf("Failed to increment notification counter for donor %s: %v", d.ID, err)
	}
	return nil
}

func (s *MatchingService) notifyCandidate(ctx context.Context, req *emergency.Request, d *donor.Donor) error {
	if err := s.recordNotification(ctx, req, d); err != nil {
		return fmt.Errorf("failed to record response for donor %s on request %s: %w", d.ID, req.ID, err)
	}
	if err := s.notifier.Send(ctx, d.Phone, requestMessage(req)); err != nil {
		s.logger.Warnf("Failed to notify donor %s for request %s: %v", d.ID, req.ID, err)
	}
	return nil
}

func (s *MatchingService) armEscalation(requestID uuid.UUID) {
	s.timers.Arm(requestID, s.escalationTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Infof("Escalation timeout fired for request %s", requestID)
		if err := s.FindAndNotify(ctx, requestID); err != nil {
			s.logger.Errorf("Escalation cycle failed for request %s: %v", requestID, err)
		}
	})
}

// flagExhausted marks a request whose candidate pool ran dry for human
// review. The request stays active but is not retried automatically.
func (s *MatchingService) flagExhausted(ctx context.Context, req *emergency.Request) {
	s.timers.Cancel(req.ID)
	s.logger.Warnf("No eligible donors left for request %s (%s, %s); flagging for review", req.ID, req.BloodGroup, req.City)
	msg := fmt.Sprintf("Donor pool exhausted for request %s: patient %s, %s in %s. Manual intervention needed.",
		req.ShortCode, req.PatientName, req.BloodGroup, req.City)
	if err := s.alerts.Alert(ctx, msg); err != nil {
		s.logger.Errorf("Failed to deliver exhaustion alert for request %s: %v", req.ID, err)
	}
	if req.RequesterPhone != "" && req.Type == emergency.TypeGeneral {
		notice := "We searched our network but could not find any available donors at this moment. Our team has been alerted."
		if err := s.notifier.Send(ctx, req.RequesterPhone, notice); err != nil {
			s.logger.Warnf("Failed to inform requester of exhaustion for %s: %v", req.ID, err)
		}
	}
}

func (s *MatchingService) tryAcquire(requestID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[requestID] {
		return false
	}
	s.inFlight[requestID] = true
	return true
}

func (s *MatchingService) release(requestID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, requestID)
}

func requestMessage(req *emergency.Request) string {
	where := req.HospitalName
	if where == "" || where == "Unknown" {
		where = req.City
	}
	return fmt.Sprintf("URGENT: You are a top-ranked match!\n\nPatient %s needs your help (%s) at %s.\n\nReply YES %s to help.",
		req.PatientName, req.BloodGroup, where, req.ShortCode)
}
