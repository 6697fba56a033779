// internal/handlers/billing/webhook_handler_test.go
package billing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	received *billing.WebhookNotification
	err      error
}

func (f *fakeProcessor) ProcessNotification(ctx context.Context, n billing.WebhookNotification) error {
	f.received = &n
	return f.err
}

type fakeTokens struct {
	valid string
}

func (f *fakeTokens) VerifyWebhookToken(ctx context.Context, token string) error {
	if token == "" || token != f.valid {
		return xerrors.ErrUnauthorized
	}
	return nil
}

func newWebhookRouter(processor *fakeProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(processor, &fakeTokens{valid: "secret-token"}, zap.NewNop())

	r := gin.New()
	r.POST("/api/asaas/asaas-webhook", h.HandleNotification)
	return r
}

func postWebhook(r *gin.Engine, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/asaas/asaas-webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("asaas-access-token", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsMissingToken(t *testing.T) {
	processor := &fakeProcessor{}
	r := newWebhookRouter(processor)

	w := postWebhook(r, "", `{"event":"PAYMENT_CONFIRMED"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, processor.received)
}

func TestWebhookRejectsWrongToken(t *testing.T) {
	processor := &fakeProcessor{}
	r := newWebhookRouter(processor)

	w := postWebhook(r, "wrong", `{"event":"PAYMENT_CONFIRMED"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, processor.received)
}

func TestWebhookAcceptsValidDelivery(t *testing.T) {
	processor := &fakeProcessor{}
	r := newWebhookRouter(processor)

	w := postWebhook(r, "secret-token",
		`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","value":29.9,"status":"CONFIRMED"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	require.NotNil(t, processor.received)
	assert.Equal(t, "PAYMENT_CONFIRMED", processor.received.Event)
	require.NotNil(t, processor.received.Payment)
	assert.Equal(t, "pay_1", processor.received.Payment.ID)
}

func TestWebhookMalformedBody(t *testing.T) {
	processor := &fakeProcessor{}
	r := newWebhookRouter(processor)

	w := postWebhook(r, "secret-token", `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, processor.received)
}

func TestWebhookProcessingFailureReturns500(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("db down")}
	r := newWebhookRouter(processor)

	w := postWebhook(r, "secret-token", `{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1"}}`)

	// 5xx makes the gateway retry the delivery later.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
