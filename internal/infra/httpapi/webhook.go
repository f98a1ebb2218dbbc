package httpapi

import (
	"encoding/json"
	"net/http"

	"bloodbridge_bot/internal/app"

	"github.com/sirupsen/logrus"
)

// webhookPayload mirrors the Meta Cloud API inbound notification shape,
// reduced to the fields the bot reads.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						ButtonReply struct {
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// verifyWebhookHandler answers the platform's GET subscription handshake.
func verifyWebhookHandler(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == verifyToken {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(q.Get("hub.challenge")))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}
}

// receiveWebhookHandler normalizes inbound messages and feeds them to the
// router. It always acknowledges with 200 so the platform does not retry:
// processing failures are logged, not surfaced.
func receiveWebhookHandler(router *app.MessageRouter, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logger.Warnf("Failed to decode webhook payload: %v", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		for _, entry := range payload.Entry {
			for _, change := range entry.Changes {
				for _, m := range change.Value.Messages {
					text := m.Text.Body
					if m.Type == "interactive" {
						text = m.Interactive.ButtonReply.Title
					}
					if m.From == "" || text == "" {
						continue
					}
					msg := app.IncomingMessage{From: m.From, Text: text}
					if err := router.Handle(r.Context(), msg); err != nil {
						logger.Errorf("Failed to handle message from %s: %v", msg.From, err)
					}
				}
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
