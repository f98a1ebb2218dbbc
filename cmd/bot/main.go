package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloodbridge_bot/internal/app"
	"bloodbridge_bot/internal/infra/config"
	idb "bloodbridge_bot/internal/infra/database"
	"bloodbridge_bot/internal/infra/httpapi"
	"bloodbridge_bot/internal/infra/logger"
	"bloodbridge_bot/internal/infra/mlscore"
	"bloodbridge_bot/internal/infra/scheduler"
	"bloodbridge_bot/internal/infra/telegram"
	"bloodbridge_bot/internal/infra/whatsapp"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("BloodBridge bot starting (env: %s)", cfg.Environment)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established.")

	// Repositories
	donorRepo := idb.NewPostgresDonorRepository(db)
	requestRepo := idb.NewPostgresRequestRepository(db)
	bridgeRepo := idb.NewPostgresBridgeRepository(db)
	patientRepo := idb.NewPostgresPatientRepository(db)
	confirmationStore := idb.NewPostgresConfirmationStore(db, bridgeRepo, cfg.DonationCooldown)

	// Outbound clients
	notifier := whatsapp.NewClient(cfg.WhatsAppBaseURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID)
	scorer := mlscore.NewClient(cfg.MLServiceURL)

	// Telegram admin bot for operational alerts
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			log.Errorf("Telegram bot error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Could not create Telegram bot: %v", err)
	}
	alerts := telegram.NewAlertAdapter(bot, cfg.AdminChatID)

	// Application services
	timers := app.NewEscalationTimers()
	scores := app.NewScoreAdapter(scorer, donorRepo, log, cfg.ScoreCacheTTL)
	outbox := app.NewOutboxDispatcher(notifier, donorRepo, log)
	matching := app.NewMatchingService(donorRepo, requestRepo, scores, notifier, alerts, timers, log, cfg.EscalationTimeout, cfg.EscalationBatchSize)
	confirmation := app.NewConfirmationService(donorRepo, requestRepo, confirmationStore, notifier, outbox, timers, matching, log, cfg.OTPTTL)
	bridges := app.NewBridgeService(bridgeRepo, donorRepo, patientRepo, requestRepo, scores, notifier, alerts, log)
	patients := app.NewPatientService(patientRepo, notifier, log)
	donorReg := app.NewDonorService(donorRepo, notifier, log)
	engagement := app.NewEngagementService(donorRepo, notifier, log, cfg.InactiveDonorAfter)
	messages := app.NewMessageRouter(matching, confirmation, patients, donorReg, notifier, alerts, nil, log)

	// Scheduled jobs
	jobs := scheduler.NewJobScheduler(
		engagement,
		bridges,
		log,
		cfg.CronSpecEligibilitySweep,
		cfg.CronSpecBridgeRequests,
		cfg.CronSpecInactiveNudges,
	)
	jobs.Start()

	// HTTP surface: webhook plus the operator API
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Matching:    matching,
		Bridges:     bridges,
		Engagement:  engagement,
		Messages:    messages,
		DB:          db,
		VerifyToken: cfg.WhatsAppVerifyToken,
		Logger:      log,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	go bot.Start()

	log.Info("Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	jobs.Stop()
	timers.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully.")
}
