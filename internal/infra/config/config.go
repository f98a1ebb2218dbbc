package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL string

	WhatsAppBaseURL       string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string

	MLServiceURL string

	TelegramToken  string
	AdminChatID    int64
	HTTPListenAddr string
	LogLevel       string
	Environment    string

	CronSpecEligibilitySweep string // daily donor reactivation sweep
	CronSpecBridgeRequests   string // daily due-bridge trigger
	CronSpecInactiveNudges   string // weekly inactive donor nudge

	EscalationTimeout   time.Duration
	EscalationBatchSize int
	OTPTTL              time.Duration
	DonationCooldown    time.Duration
	ScoreCacheTTL       time.Duration
	InactiveDonorAfter  time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.WhatsAppBaseURL = os.Getenv("WHATSAPP_API_BASE_URL")
	if cfg.WhatsAppBaseURL == "" {
		cfg.WhatsAppBaseURL = "https://graph.facebook.com/v19.0"
	}
	cfg.WhatsAppToken = os.Getenv("WHATSAPP_TOKEN")
	if cfg.WhatsAppToken == "" {
		return nil, fmt.Errorf("WHATSAPP_TOKEN is not set")
	}
	cfg.WhatsAppPhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	if cfg.WhatsAppPhoneNumberID == "" {
		return nil, fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID is not set")
	}
	cfg.WhatsAppVerifyToken = os.Getenv("WHATSAPP_VERIFY_TOKEN")
	if cfg.WhatsAppVerifyToken == "" {
		return nil, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is not set")
	}

	cfg.MLServiceURL = os.Getenv("ML_SERVICE_URL")
	if cfg.MLServiceURL == "" {
		return nil, fmt.Errorf("ML_SERVICE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_CHAT_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_CHAT_ID is not set")
	}
	cfg.AdminChatID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecEligibilitySweep = os.Getenv("CRON_SPEC_ELIGIBILITY_SWEEP")
	if cfg.CronSpecEligibilitySweep == "" {
		cfg.CronSpecEligibilitySweep = "0 9 * * *" // Default: 9:00 AM daily
	}
	cfg.CronSpecBridgeRequests = os.Getenv("CRON_SPEC_BRIDGE_REQUESTS")
	if cfg.CronSpecBridgeRequests == "" {
		cfg.CronSpecBridgeRequests = "0 8 * * *" // Default: 8:00 AM daily
	}
	cfg.CronSpecInactiveNudges = os.Getenv("CRON_SPEC_INACTIVE_NUDGES")
	if cfg.CronSpecInactiveNudges == "" {
		cfg.CronSpecInactiveNudges = "0 10 * * 0" // Default: 10:00 AM Sundays
	}

	cfg.EscalationTimeout, err = durationEnv("ESCALATION_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.OTPTTL, err = durationEnv("OTP_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.DonationCooldown, err = durationEnv("DONATION_COOLDOWN", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.ScoreCacheTTL, err = durationEnv("SCORE_CACHE_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.InactiveDonorAfter, err = durationEnv("INACTIVE_DONOR_AFTER", 180*24*time.Hour)
	if err != nil {
		return nil, err
	}

	batchStr := os.Getenv("ESCALATION_BATCH_SIZE")
	if batchStr == "" {
		cfg.EscalationBatchSize = 10
	} else {
		cfg.EscalationBatchSize, err = strconv.Atoi(batchStr)
		if err != nil || cfg.EscalationBatchSize < 1 {
			return nil, fmt.Errorf("invalid ESCALATION_BATCH_SIZE: %q", batchStr)
		}
	}

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
