package app

import (
	"context"
	"testing"
	"time"

	"bloodbridge_bot/internal/domain/blood"
	"bloodbridge_bot/internal/domain/donor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDonorFixture(t *testing.T) (*DonorService, *fakeDonorRepo, *fakeNotifier) {
	t.Helper()
	donors := &fakeDonorRepo{}
	notifier := &fakeNotifier{}
	return NewDonorService(donors, notifier, testLogger()), donors, notifier
}

func TestDonorStartRegistration(t *testing.T) {
	svc, donors, notifier := newDonorFixture(t)

	require.NoError(t, svc.StartRegistration(context.Background(), "+911"))

	d, err := donors.GetByPhone(context.Background(), "+911")
	require.NoError(t, err)
	assert.Equal(t, donor.AwaitingName, d.Onboarding)
	assert.Equal(t, donor.Unavailable, d.Availability, "half-registered donors are never matched")
	msgs := notifier.messagesTo("+911")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "name")
}

func TestDonorRegistrationFullFlow(t *testing.T) {
	svc, donors, notifier := newDonorFixture(t)
	require.NoError(t, svc.StartRegistration(context.Background(), "+911"))

	for _, reply := range []string{"Ravi Kumar", "o positive", "Hyderabad"} {
		handled, err := svc.HandleOnboardingReply(context.Background(), "+911", reply)
		require.NoError(t, err)
		assert.True(t, handled)
	}

	d, err := donors.GetByPhone(context.Background(), "+911")
	require.NoError(t, err)
	assert.Equal(t, donor.Complete, d.Onboarding)
	assert.Equal(t, "Ravi Kumar", d.Name)
	assert.Equal(t, blood.OPositive, d.BloodGroup)
	assert.Equal(t, "Hyderabad", d.City)
	assert.Equal(t, donor.Available, d.Availability)
	assert.True(t, d.Eligible(time.Now()), "a completed registration is matchable")

	msgs := notifier.messagesTo("+911")
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[3], "registered")
}

func TestDonorRegistrationInvalidInputRepeatsQuestion(t *testing.T) {
	svc, donors, notifier := newDonorFixture(t)
	require.NoError(t, svc.StartRegistration(context.Background(), "+911"))

	handled, err := svc.HandleOnboardingReply(context.Background(), "+911", "Ravi")
	require.NoError(t, err)
	require.True(t, handled)

	handled, err = svc.HandleOnboardingReply(context.Background(), "+911", "purple")
	require.NoError(t, err)
	require.True(t, handled)

	d, err := donors.GetByPhone(context.Background(), "+911")
	require.NoError(t, err)
	assert.Equal(t, donor.AwaitingBloodGroup, d.Onboarding, "invalid reply does not advance the state")
	msgs := notifier.messagesTo("+911")
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2], "blood group")
}

func TestDonorStartRegistrationAlreadyRegistered(t *testing.T) {
	svc, donors, notifier := newDonorFixture(t)
	donors.add(&donor.Donor{Name: "Ravi", Phone: "+911", Onboarding: donor.Complete})

	require.NoError(t, svc.StartRegistration(context.Background(), "+911"))

	assert.Len(t, donors.donors, 1, "no duplicate record")
	msgs := notifier.messagesTo("+911")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "already registered")
}

func TestDonorOnboardingReplyUnknownPhone(t *testing.T) {
	svc, _, _ := newDonorFixture(t)

	handled, err := svc.HandleOnboardingReply(context.Background(), "+999", "hello")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestHandlePauseAndResume(t *testing.T) {
	svc, donors, notifier := newDonorFixture(t)
	d := donors.add(&donor.Donor{Name: "Ravi", Phone: "+911", Onboarding: donor.Complete})

	require.NoError(t, svc.HandlePause(context.Background(), d.Phone))
	assert.True(t, d.DoNotDisturb)
	assert.False(t, d.Eligible(time.Now()))

	require.NoError(t, svc.HandleResume(context.Background(), d.Phone))
	assert.False(t, d.DoNotDisturb)
	assert.True(t, d.Eligible(time.Now()))

	msgs := notifier.messagesTo(d.Phone)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "RESUME")
}

func TestHandleSnooze(t *testing.T) {
	svc, donors, _ := newDonorFixture(t)
	d := donors.add(&donor.Donor{Name: "Ravi", Phone: "+911", Onboarding: donor.Complete})

	require.NoError(t, svc.HandleSnooze(context.Background(), d.Phone, 45))
	require.True(t, d.SnoozeUntil.Valid)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 45), d.SnoozeUntil.Time, time.Minute)
	assert.False(t, d.Eligible(time.Now()))
}

func TestHandleSnoozeDefaultWindow(t *testing.T) {
	svc, donors, _ := newDonorFixture(t)
	d := donors.add(&donor.Donor{Name: "Ravi", Phone: "+911", Onboarding: donor.Complete})

	require.NoError(t, svc.HandleSnooze(context.Background(), d.Phone, 0))
	require.True(t, d.SnoozeUntil.Valid)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, defaultSnoozeDays), d.SnoozeUntil.Time, time.Minute)
}

func TestPreferenceChangeUnregisteredPhone(t *testing.T) {
	svc, _, notifier := newDonorFixture(t)

	require.NoError(t, svc.HandlePause(context.Background(), "+999"))
	msgs := notifier.messagesTo("+999")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "register donor")
}
