package app

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTimersArmAndFire(t *testing.T) {
	timers := NewEscalationTimers()
	defer timers.Stop()

	fired := make(chan struct{})
	id := uuid.New()
	timers.Arm(id, 10*time.Millisecond, func() { close(fired) })
	assert.True(t, timers.Pending(id))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return !timers.Pending(id) }, time.Second, 5*time.Millisecond)
}

func TestTimersCancel(t *testing.T) {
	timers := NewEscalationTimers()
	defer timers.Stop()

	id := uuid.New()
	fired := make(chan struct{})
	timers.Arm(id, 20*time.Millisecond, func() { close(fired) })
	timers.Cancel(id)
	assert.False(t, timers.Pending(id))

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}

	// Cancel is idempotent, also for unknown ids.
	timers.Cancel(id)
	timers.Cancel(uuid.New())
}

func TestTimersRearmReplaces(t *testing.T) {
	timers := NewEscalationTimers()
	defer timers.Stop()

	id := uuid.New()
	firstFired := make(chan struct{})
	secondFired := make(chan struct{})
	timers.Arm(id, 20*time.Millisecond, func() { close(firstFired) })
	timers.Arm(id, 40*time.Millisecond, func() { close(secondFired) })

	select {
	case <-firstFired:
		t.Fatal("replaced timer fired")
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("replacement timer did not fire")
	}
}

func TestTimersStopCancelsAll(t *testing.T) {
	timers := NewEscalationTimers()
	a, b := uuid.New(), uuid.New()
	timers.Arm(a, time.Hour, func() {})
	timers.Arm(b, time.Hour, func() {})
	timers.Stop()
	assert.False(t, timers.Pending(a))
	assert.False(t, timers.Pending(b))
}
