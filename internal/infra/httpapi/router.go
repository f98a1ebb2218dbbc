package httpapi

import (
	"database/sql"
	"net/http"

	"bloodbridge_bot/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Matching    *app.MatchingService
	Bridges     *app.BridgeService
	Engagement  *app.EngagementService
	Messages    *app.MessageRouter
	DB          *sql.DB
	VerifyToken string
	Logger      *logrus.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/healthz", healthHandler(cfg.DB))

	r.Get("/webhook", verifyWebhookHandler(cfg.VerifyToken))
	r.Post("/webhook", receiveWebhookHandler(cfg.Messages, cfg.Logger))

	r.Post("/requests", createRequestHandler(cfg.Matching))
	r.Get("/requests/{id}", getRequestHandler(cfg.Matching))
	r.Post("/requests/{id}/escalate", escalateRequestHandler(cfg.Matching))
	r.Post("/requests/{id}/close", closeRequestHandler(cfg.Matching))

	r.Post("/bridges/{id}/populate", populateBridgeHandler(cfg.Bridges))
	r.Post("/bridges/{id}/transfusion", requestTransfusionHandler(cfg.Bridges))

	r.Post("/jobs/{name}", runJobHandler(cfg.Engagement, cfg.Bridges))

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
