package app

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bloodbridge_bot/internal/domain/notify"

	"github.com/sirupsen/logrus"
)

// IncomingMessage is a transport-normalized inbound message. Webhook
// parsing and signature verification happen upstream; the core only ever
// sees this shape.
type IncomingMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// IntentKind is the closed set of actions the core understands. Inbound
// text is decoded into exactly one of these at the boundary; nothing
// downstream dispatches on free-form strings.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentShortCodeReply
	IntentOTPReply
	IntentDecline
	IntentEmergency
	IntentRegisterPatient
	IntentRegisterDonor
	IntentJoinBridge
	IntentBridgeOptIn
	IntentBridgeOptOut
	IntentPauseNotifications
	IntentResumeNotifications
	IntentSnooze
)

// Intent is the decoded form of one inbound message.
type Intent struct {
	Kind       IntentKind
	ShortCode  string
	OTP        string
	BloodGroup string
	City       string
	Days       int
}

// IntentResolver is the external natural-language capability consulted
// when rigid parsing cannot complete an emergency's details. May be nil.
type IntentResolver interface {
	Resolve(ctx context.Context, text string) (*Intent, error)
}

var (
	shortCodeRe  = regexp.MustCompile(`(?i)^yes\s+(\d{4})$`)
	otpRe        = regexp.MustCompile(`^\d{6}$`)
	snoozeRe     = regexp.MustCompile(`(?i)^snooze(?:\s+(\d{1,3}))?(?:\s+days?)?$`)
	bloodGroupRe = regexp.MustCompile(`(?i)\b(AB|A|B|O)\s?(positive|negative|pos|neg|[+-])`)
	cityRe       = regexp.MustCompile(`(?i)\b(hyderabad|mumbai|delhi|bangalore|chennai|pune|kolkata)\b`)
)

// ResolveIntent decodes one message with rigid parsing only. Emergency
// intents may come back with incomplete params; the router falls through
// to the external resolver for those.
func ResolveIntent(text string) Intent {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if m := shortCodeRe.FindStringSubmatch(trimmed); m != nil {
		return Intent{Kind: IntentShortCodeReply, ShortCode: m[1]}
	}
	if otpRe.MatchString(trimmed) {
		return Intent{Kind: IntentOTPReply, OTP: trimmed}
	}
	if lower == "no" {
		return Intent{Kind: IntentDecline}
	}
	if strings.Contains(lower, "register") && strings.Contains(lower, "patient") {
		return Intent{Kind: IntentRegisterPatient}
	}
	if strings.Contains(lower, "register") && strings.Contains(lower, "donor") || strings.Contains(lower, "want to donate") {
		return Intent{Kind: IntentRegisterDonor}
	}
	if strings.Contains(lower, "join") && strings.Contains(lower, "bridge") {
		return Intent{Kind: IntentJoinBridge}
	}
	// Button labels from the bridge opt-in prompt come back as plain text.
	if lower == "count me in" {
		return Intent{Kind: IntentBridgeOptIn}
	}
	if lower == "not now" {
		return Intent{Kind: IntentBridgeOptOut}
	}
	if lower == "pause" || lower == "stop" || lower == "dnd" {
		return Intent{Kind: IntentPauseNotifications}
	}
	if lower == "resume" || lower == "start" {
		return Intent{Kind: IntentResumeNotifications}
	}
	if m := snoozeRe.FindStringSubmatch(trimmed); m != nil {
		days := 0
		if m[1] != "" {
			days, _ = strconv.Atoi(m[1])
		}
		return Intent{Kind: IntentSnooze, Days: days}
	}
	if strings.Contains(lower, "emergency") || strings.Contains(lower, "urgent") || strings.Contains(lower, "need blood") {
		intent := Intent{Kind: IntentEmergency}
		if m := bloodGroupRe.FindString(trimmed); m != "" {
			intent.BloodGroup = m
		}
		if m := cityRe.FindString(trimmed); m != "" {
			lc := strings.ToLower(m)
			intent.City = strings.ToUpper(lc[:1]) + lc[1:]
		}
		return intent
	}
	return Intent{Kind: IntentUnknown}
}

// MessageRouter dispatches decoded intents into the core services.
type MessageRouter struct {
	matching     *MatchingService
	confirmation *ConfirmationService
	patients     *PatientService
	donorReg     *DonorService
	notifier     notify.Notifier
	alerts       notify.AlertSink
	resolver     IntentResolver
	logger       *logrus.Logger
}

func NewMessageRouter(
	matching *MatchingService,
	confirmation *ConfirmationService,
	patients *PatientService,
	donorReg *DonorService,
	notifier notify.Notifier,
	alerts notify.AlertSink,
	resolver IntentResolver,
	logger *logrus.Logger,
) *MessageRouter {
	return &MessageRouter{
		matching:     matching,
		confirmation: confirmation,
		patients:     patients,
		donorReg:     donorReg,
		notifier:     notifier,
		alerts:       alerts,
		resolver:     resolver,
		logger:       logger,
	}
}

// Handle processes one normalized inbound message end to end.
func (r *MessageRouter) Handle(ctx context.Context, msg IncomingMessage) error {
	// In-progress onboarding owns the conversation, patients first.
	handled, err := r.patients.HandleOnboardingReply(ctx, msg.From, msg.Text)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}
	handled, err = r.donorReg.HandleOnboardingReply(ctx, msg.From, msg.Text)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	intent := ResolveIntent(msg.Text)
	switch intent.Kind {
	case IntentShortCodeReply:
		return r.confirmation.HandleShortCodeReply(ctx, msg.From, intent.ShortCode)
	case IntentOTPReply:
		return r.confirmation.HandleOTPReply(ctx, msg.From, intent.OTP)
	case IntentDecline:
		return r.confirmation.HandleSimpleDecline(ctx, msg.From)
	case IntentRegisterPatient:
		return r.patients.StartRegistration(ctx, msg.From)
	case IntentRegisterDonor:
		return r.donorReg.StartRegistration(ctx, msg.From)
	case IntentPauseNotifications:
		return r.donorReg.HandlePause(ctx, msg.From)
	case IntentResumeNotifications:
		return r.donorReg.HandleResume(ctx, msg.From)
	case IntentSnooze:
		return r.donorReg.HandleSnooze(ctx, msg.From, intent.Days)
	case IntentEmergency:
		return r.handleEmergency(ctx, msg, intent)
	case IntentJoinBridge:
		return r.handleJoinBridge(ctx, msg)
	case IntentBridgeOptIn:
		return r.handleBridgeOptIn(ctx, msg)
	case IntentBridgeOptOut:
		r.send(ctx, msg.From, "No problem! You will still receive regular emergency requests.")
		return nil
	default:
		r.logger.Debugf("Unrecognized message from %s", msg.From)
		r.send(ctx, msg.From, "Sorry, I didn't understand that. For an emergency, send the patient's blood group and city.")
		return nil
	}
}

// handleJoinBridge asks a registered donor to confirm their bridge
// interest with a button prompt. Bridge membership is curated, so the
// actual enrollment happens through the populate endpoint.
func (r *MessageRouter) handleJoinBridge(ctx context.Context, msg IncomingMessage) error {
	if _, err := r.donorReg.donors.GetByPhone(ctx, msg.From); err != nil {
		r.send(ctx, msg.From, "Thank you for your interest in joining a blood bridge! Reply \"register donor\" to sign up first, and we will reach out.")
		return nil
	}

	prompt := "Blood Bridges support one patient with a committed, rotating group of donors. Shall we put you forward for a bridge matching your blood group?"
	options := []notify.ChoiceOption{
		{ID: "bridge_optin_yes", Label: "Count me in"},
		{ID: "bridge_optin_no", Label: "Not now"},
	}
	if err := r.notifier.SendChoice(ctx, msg.From, prompt, options); err != nil {
		r.logger.Warnf("Failed to send bridge opt-in prompt to %s: %v", msg.From, err)
	}
	return nil
}

// handleBridgeOptIn records a confirmed bridge volunteer by alerting the
// operator channel.
func (r *MessageRouter) handleBridgeOptIn(ctx context.Context, msg IncomingMessage) error {
	d, err := r.donorReg.donors.GetByPhone(ctx, msg.From)
	if err != nil {
		r.send(ctx, msg.From, "We couldn't find your registration. Reply \"register donor\" to sign up.")
		return nil
	}

	r.send(ctx, msg.From, "Thank you for volunteering for a blood bridge! Our team will review your profile and add you to a bridge that needs your blood group.")
	if err := r.alerts.Alert(ctx, fmt.Sprintf("Donor %s (%s, %s) volunteered for a blood bridge.", d.Name, d.BloodGroup, d.City)); err != nil {
		r.logger.Warnf("Failed to alert operators about bridge volunteer: %v", err)
	}
	return nil
}

// send is a best-effort donor-facing message; failures are logged only.
func (r *MessageRouter) send(ctx context.Context, phone, message string) {
	if err := r.notifier.Send(ctx, phone, message); err != nil {
		r.logger.Warnf("Failed to send message to %s: %v", phone, err)
	}
}

func (r *MessageRouter) handleEmergency(ctx context.Context, msg IncomingMessage, intent Intent) error {
	if (intent.BloodGroup == "" || intent.City == "") && r.resolver != nil {
		resolved, err := r.resolver.Resolve(ctx, msg.Text)
		if err != nil {
			r.logger.Warnf("Intent resolver failed for message from %s: %v", msg.From, err)
		} else if resolved != nil && resolved.Kind == IntentEmergency {
			if intent.BloodGroup == "" {
				intent.BloodGroup = resolved.BloodGroup
			}
			if intent.City == "" {
				intent.City = resolved.City
			}
		}
	}

	if intent.BloodGroup == "" || intent.City == "" {
		r.send(ctx, msg.From, "I understand this is an emergency. To find a donor, please provide the patient's blood group and the city where the hospital is located.")
		return nil
	}

	_, err := r.matching.CreateRequest(ctx, CreateRequestParams{
		BloodGroup:     intent.BloodGroup,
		City:           intent.City,
		RequesterPhone: msg.From,
	})
	return err
}
