package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// AlertAdapter pushes operational alerts (exhausted requests, failed
// sweeps) to the admin chat. It implements notify.AlertSink.
type AlertAdapter struct {
	bot         *telebot.Bot
	adminChatID int64
}

func NewAlertAdapter(b *telebot.Bot, adminChatID int64) *AlertAdapter {
	return &AlertAdapter{bot: b, adminChatID: adminChatID}
}

func (a *AlertAdapter) Alert(_ context.Context, message string) error {
	recipient := &telebot.User{ID: a.adminChatID}
	_, err := a.bot.Send(recipient, message)
	return err
}
