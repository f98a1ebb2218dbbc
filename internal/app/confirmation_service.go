package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/emergency"
	"bloodbridge_bot/internal/domain/notify"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const emergencyResponsePoints = 100

// ConfirmationService implements the two-phase donor confirmation: a
// short-code reply earns an OTP, and a valid OTP finalizes the donation
// atomically through the confirmation store.
type ConfirmationService struct {
	donors   donor.Repository
	requests emergency.Repository
	store    emergency.ConfirmationStore
	notifier notify.Notifier
	outbox   *OutboxDispatcher
	timers   *EscalationTimers
	matching *MatchingService
	logger   *logrus.Logger
	otpTTL   time.Duration
}

func NewConfirmationService(
	donors donor.Repository,
	requests emergency.Repository,
	store emergency.ConfirmationStore,
	notifier notify.Notifier,
	outbox *OutboxDispatcher,
	timers *EscalationTimers,
	matching *MatchingService,
	logger *logrus.Logger,
	otpTTL time.Duration,
) *ConfirmationService {
	return &ConfirmationService{
		donors:   donors,
		requests: requests,
		store:    store,
		notifier: notifier,
		outbox:   outbox,
		timers:   timers,
		matching: matching,
		logger:   logger,
		otpTTL:   otpTTL,
	}
}

// HandleShortCodeReply processes phase one: "YES 4821". It resolves the
// code against active requests only, issues a fresh OTP and stores it on
// the (donor, request) response row. Donors may retry this phase; the
// upsert resets the OTP each time.
func (s *ConfirmationService) HandleShortCodeReply(ctx context.Context, donorPhone, shortCode string) error {
	req, err := s.requests.GetActiveByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, idb.ErrRequestNotFound) {
			s.logger.Infof("Stale short code %s from %s", shortCode, donorPhone)
			s.send(ctx, donorPhone, fmt.Sprintf("Sorry, we couldn't find an active request with code %s. It may have been fulfilled.", shortCode))
			return nil
		}
		return fmt.Errorf("failed to resolve short code %s: %w", shortCode, err)
	}

	d, err := s.donors.GetByPhone(ctx, donorPhone)
	if err != nil {
		if errors.Is(err, idb.ErrDonorNotFound) {
			s.send(ctx, donorPhone, "We couldn't find your registration. Reply \"register donor\" to sign up.")
			return nil
		}
		return fmt.Errorf("failed to look up donor by phone: %w", err)
	}

	otp := newOTP()
	expiry := sql.NullTime{Time: time.Now().Add(s.otpTTL), Valid: true}
	if err := s.requests.UpsertPendingResponse(ctx, d.ID, req.ID, sql.NullString{String: otp, Valid: true}, expiry); err != nil {
		s.send(ctx, donorPhone, "There was a system error processing your reply. Please try again.")
		return fmt.Errorf("failed to store OTP for donor %s on request %s: %w", d.ID, req.ID, err)
	}

	s.logger.Infof("Issued OTP to donor %s for request %s", d.ID, req.ID)
	s.send(ctx, donorPhone, fmt.Sprintf("Thank you for your quick response! To finalize your confirmation, please reply with only the following 6-digit code:\n\n%s", otp))
	return nil
}

// HandleOTPReply processes phase two. The confirmation store serializes
// concurrent replies on the row lock; exactly one pending response can
// win. Re-submitting the same OTP after a transaction failure is safe.
func (s *ConfirmationService) HandleOTPReply(ctx context.Context, donorPhone, otp string) error {
	conf, err := s.store.ConfirmDonation(ctx, donorPhone, otp)
	if err != nil {
		if errors.Is(err, idb.ErrConfirmationConflict) {
			s.send(ctx, donorPhone, "Invalid or expired OTP. Please reply YES followed by the request code to start again.")
			return nil
		}
		s.send(ctx, donorPhone, "A system error occurred during confirmation. Please try again in a moment.")
		return fmt.Errorf("confirmation transaction failed for %s: %w", donorPhone, err)
	}

	// The request is fulfilled; a timer firing from here on no-ops on the
	// status check, but cancel it anyway to free the slot.
	s.timers.Cancel(conf.RequestID)
	s.logger.Infof("Donation confirmed: donor %s, request %s", conf.DonorID, conf.RequestID)

	events := []Event{
		{
			Kind:    EventSendMessage,
			Phone:   conf.DonorPhone,
			Message: fmt.Sprintf("Confirmed! Thank you, %s!\n\nYour donation for %s is confirmed. Please coordinate with the hospital.", conf.DonorName, conf.PatientName),
		},
		{
			Kind:    EventAwardPoints,
			DonorID: conf.DonorID,
			Points:  emergencyResponsePoints,
		},
	}
	if conf.RequesterPhone != "" && conf.RequesterPhone != "system" {
		events = append(events, Event{
			Kind:    EventSendMessage,
			Phone:   conf.RequesterPhone,
			Message: fmt.Sprintf("Good news! A donor has been confirmed for your request for %s.", conf.PatientName),
		})
	}
	s.outbox.Dispatch(ctx, events)
	return nil
}

// HandleSimpleDecline lets a donor free up their slot instead of waiting
// out the escalation window: their latest pending response is declined
// and the request escalates immediately.
func (s *ConfirmationService) HandleSimpleDecline(ctx context.Context, donorPhone string) error {
	d, err := s.donors.GetByPhone(ctx, donorPhone)
	if err != nil {
		if errors.Is(err, idb.ErrDonorNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up donor by phone: %w", err)
	}

	resp, req, err := s.requests.LatestPendingResponse(ctx, d.ID)
	if err != nil {
		if errors.Is(err, idb.ErrResponseNotFound) {
			s.send(ctx, donorPhone, "You have no pending donation requests right now.")
			return nil
		}
		return fmt.Errorf("failed to find pending response for donor %s: %w", d.ID, err)
	}

	if err := s.requests.MarkResponseDeclined(ctx, resp.ID); err != nil {
		return fmt.Errorf("failed to decline response %s: %w", resp.ID, err)
	}
	s.logger.Infof("Donor %s declined request %s, escalating early", d.ID, req.ID)
	s.send(ctx, donorPhone, "No problem! We appreciate you being a donor and will keep you in mind for future requests.")

	if err := s.matching.FindAndNotify(ctx, req.ID); err != nil {
		s.logger.Errorf("Escalation after decline failed for request %s: %v", req.ID, err)
	}
	return nil
}

// send is a best-effort donor-facing message; failures are logged only.
func (s *ConfirmationService) send(ctx context.Context, phone, message string) {
	if err := s.notifier.Send(ctx, phone, message); err != nil {
		s.logger.Warnf("Failed to send message to %s: %v", phone, err)
	}
}
