package httpapi

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhook(t *testing.T) {
	h := verifyWebhookHandler("secret-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	h(rec, req)
	assert.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(body), "challenge is echoed back")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	h(rec, req)
	assert.Equal(t, 403, rec.Code)
}

func TestReceiveWebhookMalformedBodyStillAcknowledges(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := receiveWebhookHandler(nil, logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("not json"))
	h(rec, req)
	assert.Equal(t, 200, rec.Code, "the platform must never be told to retry")
}
