package app

import (
	"context"

	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventKind labels a post-commit side effect.
type EventKind string

const (
	EventSendMessage EventKind = "send_message"
	EventAwardPoints EventKind = "award_points"
)

// Event is one side effect emitted by a committed confirmation. Events
// are dispatched after the transaction so their failures are visibly
// decoupled from the invariant-preserving state change.
type Event struct {
	Kind    EventKind
	Phone   string
	Message string
	DonorID uuid.UUID
	Points  int
}

// OutboxDispatcher processes post-commit events best-effort: every
// failure is logged with identifiers and never propagated.
type OutboxDispatcher struct {
	notifier notify.Notifier
	donors   donor.Repository
	logger   *logrus.Logger
}

func NewOutboxDispatcher(notifier notify.Notifier, donors donor.Repository, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{notifier: notifier, donors: donors, logger: logger}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case EventSendMessage:
			if err := d.notifier.Send(ctx, ev.Phone, ev.Message); err != nil {
				d.logger.Warnf("Outbox: failed to send message to %s: %v", ev.Phone, err)
			}
		case EventAwardPoints:
			if err := d.donors.AwardPoints(ctx, ev.DonorID, ev.Points); err != nil {
				d.logger.Warnf("Outbox: failed to award %d points to donor %s: %v", ev.Points, ev.DonorID, err)
			}
		default:
			d.logger.Errorf("Outbox: unknown event kind %q", ev.Kind)
		}
	}
}
