package whatsapp

import (
	"context"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/notify"

	"github.com/go-resty/resty/v2"
)

// Client sends messages through the WhatsApp Cloud API. It implements
// notify.Notifier.
type Client struct {
	http          *resty.Client
	phoneNumberID string
}

func NewClient(baseURL, token, phoneNumberID string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: http, phoneNumberID: phoneNumberID}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(&apiErr).
		Post(fmt.Sprintf("/%s/messages", c.phoneNumberID))
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp send failed: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return nil
}

// Send delivers a plain text message to the given phone number.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]any{"body": message},
	})
}

// SendChoice delivers a message with reply buttons, used for bridge
// opt-in prompts.
func (c *Client) SendChoice(ctx context.Context, phone, message string, options []notify.ChoiceOption) error {
	buttons := make([]map[string]any, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    opt.ID,
				"title": opt.Label,
			},
		})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": message},
			"action": map[string]any{"buttons": buttons},
		},
	})
}
