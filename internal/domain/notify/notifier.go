package notify

import "context"

// ChoiceOption is one button offered alongside a choice message.
type ChoiceOption struct {
	ID    string
	Label string
}

// Notifier sends donor- and requester-facing messages. Delivery is
// best-effort: callers log failures and never let them abort a state
// transition that has already been committed.
type Notifier interface {
	Send(ctx context.Context, phone, message string) error
	SendChoice(ctx context.Context, phone, message string, options []ChoiceOption) error
}

// AlertSink receives operational alerts that need a human decision,
// such as a request whose candidate pool is exhausted.
type AlertSink interface {
	Alert(ctx context.Context, message string) error
}
