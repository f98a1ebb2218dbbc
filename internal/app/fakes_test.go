package app

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"time"

	"bloodbridge_bot/internal/domain/blood"
	"bloodbridge_bot/internal/domain/bridge"
	"bloodbridge_bot/internal/domain/donor"
	"bloodbridge_bot/internal/domain/emergency"
	"bloodbridge_bot/internal/domain/notify"
	"bloodbridge_bot/internal/domain/patient"
	"bloodbridge_bot/internal/domain/scoring"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testDonor(id uuid.UUID, name, phone string) *donor.Donor {
	return &donor.Donor{ID: id, Name: name, Phone: phone, Availability: donor.Available}
}

// fakeDonorRepo keeps donors in insertion order so ranking ties resolve
// deterministically in tests.
type fakeDonorRepo struct {
	mu     sync.Mutex
	donors []*donor.Donor
}

func (f *fakeDonorRepo) add(d *donor.Donor) *donor.Donor {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Availability == "" {
		d.Availability = donor.Available
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donors = append(f.donors, d)
	return d
}

func (f *fakeDonorRepo) Create(_ context.Context, d *donor.Donor) error {
	f.add(d)
	return nil
}

func (f *fakeDonorRepo) GetByID(_ context.Context, id uuid.UUID) (*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) GetByPhone(_ context.Context, phone string) (*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.Phone == phone {
			return d, nil
		}
	}
	return nil, idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) Update(_ context.Context, d *donor.Donor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.donors {
		if existing.ID == d.ID {
			f.donors[i] = d
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) SetDoNotDisturb(_ context.Context, id uuid.UUID, dnd bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			d.DoNotDisturb = dnd
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) Snooze(_ context.Context, id uuid.UUID, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			d.SnoozeUntil = sql.NullTime{Time: until, Valid: true}
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) FindEligible(_ context.Context, group blood.Group, city string, excludeIDs []uuid.UUID) ([]*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	excluded := make(map[uuid.UUID]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	now := time.Now()
	var out []*donor.Donor
	for _, d := range f.donors {
		if d.BloodGroup != group || !strings.EqualFold(d.City, city) {
			continue
		}
		if excluded[d.ID] || !d.Eligible(now) {
			continue
		}
		out = append(out, d)
		if len(out) == 50 {
			break
		}
	}
	return out, nil
}

func (f *fakeDonorRepo) IncrementNotified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			d.NotificationsReceived++
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) UpdateScoreCache(_ context.Context, id uuid.UUID, score float64, cachedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			d.LastScore = sql.NullFloat64{Float64: score, Valid: true}
			d.ScoreCachedAt = sql.NullTime{Time: cachedAt, Valid: true}
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

func (f *fakeDonorRepo) SweepEligible(_ context.Context, now time.Time) ([]*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped []*donor.Donor
	for _, d := range f.donors {
		if d.Availability == donor.Unavailable && d.CooldownUntil.Valid && !d.CooldownUntil.Time.After(now) {
			d.Availability = donor.Available
			d.CooldownUntil = sql.NullTime{}
			flipped = append(flipped, d)
		}
	}
	return flipped, nil
}

func (f *fakeDonorRepo) ListInactive(_ context.Context, lastDonationBefore time.Time) ([]*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*donor.Donor
	for _, d := range f.donors {
		if d.Availability != donor.Available || d.DoNotDisturb {
			continue
		}
		if !d.LastDonation.Valid || d.LastDonation.Time.Before(lastDonationBefore) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDonorRepo) AwardPoints(_ context.Context, id uuid.UUID, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donors {
		if d.ID == id {
			d.Points += points
			return nil
		}
	}
	return idb.ErrDonorNotFound
}

type fakeRequestRepo struct {
	mu        sync.Mutex
	requests  []*emergency.Request
	responses []*emergency.DonorResponse
}

func (f *fakeRequestRepo) Create(_ context.Context, r *emergency.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	f.requests = append(f.requests, r)
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*emergency.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, idb.ErrRequestNotFound
}

func (f *fakeRequestRepo) GetActiveByShortCode(_ context.Context, shortCode string) (*emergency.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ShortCode == shortCode && r.Status == emergency.StatusActive {
			return r, nil
		}
	}
	return nil, idb.ErrRequestNotFound
}

func (f *fakeRequestRepo) ActiveShortCodeExists(_ context.Context, shortCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ShortCode == shortCode && r.Status == emergency.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to emergency.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id && r.Status == from {
			r.Status = to
			return nil
		}
	}
	return idb.ErrRequestNotFound
}

func (f *fakeRequestRepo) ListRespondedDonorIDs(_ context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, resp := range f.responses {
		if resp.RequestID == requestID {
			out = append(out, resp.DonorID)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) UpsertPendingResponse(_ context.Context, donorID, requestID uuid.UUID, otp sql.NullString, otpExpiresAt sql.NullTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, resp := range f.responses {
		if resp.DonorID == donorID && resp.RequestID == requestID {
			resp.Status = emergency.ResponsePending
			resp.OTP = otp
			resp.OTPExpiresAt = otpExpiresAt
			resp.UpdatedAt = time.Now()
			return nil
		}
	}
	f.responses = append(f.responses, &emergency.DonorResponse{
		ID:           uuid.New(),
		DonorID:      donorID,
		RequestID:    requestID,
		Status:       emergency.ResponsePending,
		OTP:          otp,
		OTPExpiresAt: otpExpiresAt,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (f *fakeRequestRepo) LatestPendingResponse(_ context.Context, donorID uuid.UUID) (*emergency.DonorResponse, *emergency.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.responses) - 1; i >= 0; i-- {
		resp := f.responses[i]
		if resp.DonorID != donorID || resp.Status != emergency.ResponsePending {
			continue
		}
		for _, r := range f.requests {
			if r.ID == resp.RequestID && r.Status == emergency.StatusActive {
				return resp, r, nil
			}
		}
	}
	return nil, nil, idb.ErrResponseNotFound
}

func (f *fakeRequestRepo) MarkResponseDeclined(_ context.Context, responseID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, resp := range f.responses {
		if resp.ID == responseID {
			resp.Status = emergency.ResponseDeclined
			return nil
		}
	}
	return idb.ErrResponseNotFound
}

func (f *fakeRequestRepo) CountAcceptedResponses(_ context.Context, requestID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, resp := range f.responses {
		if resp.RequestID == requestID && resp.Status == emergency.ResponseAccepted {
			n++
		}
	}
	return n, nil
}

func (f *fakeRequestRepo) responseFor(donorID, requestID uuid.UUID) *emergency.DonorResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, resp := range f.responses {
		if resp.DonorID == donorID && resp.RequestID == requestID {
			return resp
		}
	}
	return nil
}

type fakeBridgeRepo struct {
	mu      sync.Mutex
	bridges map[uuid.UUID]*bridge.Bridge
	members []*bridge.Member
	due     []*bridge.Bridge
	linkErr error
}

func newFakeBridgeRepo() *fakeBridgeRepo {
	return &fakeBridgeRepo{bridges: make(map[uuid.UUID]*bridge.Bridge)}
}

func (f *fakeBridgeRepo) add(b *bridge.Bridge) *bridge.Bridge {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.RotationPosition == 0 {
		b.RotationPosition = 1
	}
	b.Active = true
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridges[b.ID] = b
	return b
}

func (f *fakeBridgeRepo) addMember(bridgeID, donorID uuid.UUID, position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append(f.members, &bridge.Member{
		ID:       uuid.New(),
		BridgeID: bridgeID,
		DonorID:  donorID,
		Position: position,
		Status:   bridge.MemberActive,
	})
}

func (f *fakeBridgeRepo) GetByID(_ context.Context, id uuid.UUID) (*bridge.Bridge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bridges[id]; ok {
		return b, nil
	}
	return nil, idb.ErrBridgeNotFound
}

func (f *fakeBridgeRepo) ListActiveMembers(_ context.Context, bridgeID uuid.UUID) ([]*bridge.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*bridge.Member
	for _, m := range f.members {
		if m.BridgeID == bridgeID && m.Status == bridge.MemberActive {
			out = append(out, m)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Position < out[j-1].Position; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeBridgeRepo) InsertMembers(_ context.Context, bridgeID uuid.UUID, donorIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, m := range f.members {
		if m.BridgeID == bridgeID && m.Position > max {
			max = m.Position
		}
	}
	for i, id := range donorIDs {
		f.members = append(f.members, &bridge.Member{
			ID:       uuid.New(),
			BridgeID: bridgeID,
			DonorID:  id,
			Position: max + i + 1,
			Status:   bridge.MemberActive,
		})
	}
	return nil
}

func (f *fakeBridgeRepo) LinkActiveRequest(_ context.Context, bridgeID, requestID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	b, ok := f.bridges[bridgeID]
	if !ok {
		return idb.ErrBridgeNotFound
	}
	b.ActiveRequestID = uuid.NullUUID{UUID: requestID, Valid: true}
	return nil
}

func (f *fakeBridgeRepo) Rotate(_ context.Context, _ *sql.Tx, bridgeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bridges[bridgeID]
	if !ok {
		return idb.ErrBridgeNotFound
	}
	total := 0
	for _, m := range f.members {
		if m.BridgeID == bridgeID && m.Status == bridge.MemberActive {
			total++
		}
	}
	if total == 0 {
		return idb.ErrBridgeEmpty
	}
	b.RotationPosition = (b.RotationPosition % total) + 1
	b.ActiveRequestID = uuid.NullUUID{}
	return nil
}

func (f *fakeBridgeRepo) ListDue(_ context.Context, _ time.Time) ([]*bridge.Bridge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

func (f *fakeBridgeRepo) ListBridgedDonorIDs(_ context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, m := range f.members {
		if m.Status == bridge.MemberActive {
			out = append(out, m.DonorID)
		}
	}
	return out, nil
}

type fakePatientRepo struct {
	mu       sync.Mutex
	patients []*patient.Patient
}

func (f *fakePatientRepo) Create(_ context.Context, p *patient.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.patients = append(f.patients, p)
	return nil
}

func (f *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, idb.ErrPatientNotFound
}

func (f *fakePatientRepo) GetByPhone(_ context.Context, phone string) (*patient.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.Phone == phone {
			return p, nil
		}
	}
	return nil, idb.ErrPatientNotFound
}

func (f *fakePatientRepo) Update(_ context.Context, p *patient.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.patients {
		if existing.ID == p.ID {
			f.patients[i] = p
			return nil
		}
	}
	return idb.ErrPatientNotFound
}

type sentMessage struct {
	Phone   string
	Message string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	choices []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Phone: phone, Message: message})
	return nil
}

func (f *fakeNotifier) SendChoice(_ context.Context, phone, message string, _ []notify.ChoiceOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices = append(f.choices, sentMessage{Phone: phone, Message: message})
	return nil
}

func (f *fakeNotifier) choicesTo(phone string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.choices {
		if m.Phone == phone {
			out = append(out, m.Message)
		}
	}
	return out
}

func (f *fakeNotifier) messagesTo(phone string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.Phone == phone {
			out = append(out, m.Message)
		}
	}
	return out
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAlertSink struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlertSink) Alert(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, message)
	return nil
}

func (f *fakeAlertSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// stubScorer returns scores from a per-donor table; unknown donors fail
// when failUnknown is set, otherwise score 0.5.
type stubScorer struct {
	mu          sync.Mutex
	scores      map[uuid.UUID]float64
	calls       int
	err         error
	failUnknown bool
}

func (s *stubScorer) Score(_ context.Context, f scoring.Features) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if score, ok := s.scores[f.DonorID]; ok {
		return score, nil
	}
	if s.failUnknown {
		return 0, context.DeadlineExceeded
	}
	return 0.5, nil
}

type stubConfirmationStore struct {
	conf *emergency.Confirmation
	err  error
}

func (s *stubConfirmationStore) ConfirmDonation(context.Context, string, string) (*emergency.Confirmation, error) {
	return s.conf, s.err
}

// fakeConfirmationStore mirrors the transactional contract of the real
// store: only a pending, unexpired (phone, otp) row whose request is
// still active can win, and winning fulfils the request and puts the
// donor on cooldown. Everything else is a conflict.
type fakeConfirmationStore struct {
	donors   *fakeDonorRepo
	requests *fakeRequestRepo
	cooldown time.Duration
}

func (s *fakeConfirmationStore) ConfirmDonation(ctx context.Context, donorPhone, otp string) (*emergency.Confirmation, error) {
	d, err := s.donors.GetByPhone(ctx, donorPhone)
	if err != nil {
		return nil, idb.ErrConfirmationConflict
	}

	s.requests.mu.Lock()
	defer s.requests.mu.Unlock()
	now := time.Now()
	for _, resp := range s.requests.responses {
		if resp.DonorID != d.ID || resp.Status != emergency.ResponsePending {
			continue
		}
		if !resp.OTP.Valid || resp.OTP.String != otp || !resp.OTPExpiresAt.Valid || !resp.OTPExpiresAt.Time.After(now) {
			continue
		}
		for _, r := range s.requests.requests {
			if r.ID != resp.RequestID || r.Status != emergency.StatusActive {
				continue
			}
			resp.Status = emergency.ResponseAccepted
			resp.OTP = sql.NullString{}
			r.Status = emergency.StatusFulfilled
			d.Availability = donor.Unavailable
			d.LastDonation = sql.NullTime{Time: now, Valid: true}
			d.CooldownUntil = sql.NullTime{Time: now.Add(s.cooldown), Valid: true}
			return &emergency.Confirmation{
				ResponseID:     resp.ID,
				RequestID:      r.ID,
				DonorID:        d.ID,
				DonorName:      d.Name,
				DonorPhone:     d.Phone,
				PatientName:    r.PatientName,
				RequesterPhone: r.RequesterPhone,
				RequestType:    r.Type,
				BridgeID:       r.BridgeID,
				ConfirmedAt:    now,
			}, nil
		}
	}
	return nil, idb.ErrConfirmationConflict
}
