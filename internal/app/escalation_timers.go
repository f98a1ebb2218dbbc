package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EscalationTimers tracks the single pending escalation timer of each
// active request. It is owned by the matching engine and lives only for
// the process lifetime; the database status check on the fire path is
// what makes timing races safe, not precise cancellation.
type EscalationTimers struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func NewEscalationTimers() *EscalationTimers {
	return &EscalationTimers{timers: make(map[uuid.UUID]*time.Timer)}
}

// Arm schedules fn after d, replacing any timer already armed for the
// request. fn runs on its own goroutine and must re-verify request state.
func (t *EscalationTimers) Arm(requestID uuid.UUID, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[requestID]; ok {
		existing.Stop()
	}
	t.timers[requestID] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, requestID)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops the request's pending timer, if any. Safe to call
// repeatedly and for unknown ids.
func (t *EscalationTimers) Cancel(requestID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[requestID]; ok {
		existing.Stop()
		delete(t.timers, requestID)
	}
}

// Pending reports whether a timer is currently armed for the request.
func (t *EscalationTimers) Pending(requestID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[requestID]
	return ok
}

// Stop cancels every armed timer. Called on shutdown.
func (t *EscalationTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
