// internal/handlers/billing/payment_handler_test.go
package billing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/gateway/asaas"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	result *billing.VerifyPaymentResult
	err    error
}

func (f *fakeVerifier) VerifyPayment(ctx context.Context, paymentID string) (*billing.VerifyPaymentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postVerify(v *fakeVerifier, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(v, zap.NewNop())

	r := gin.New()
	r.POST("/api/asaas/verify-payment", h.VerifyPayment)

	req := httptest.NewRequest(http.MethodPost, "/api/asaas/verify-payment", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyPaymentResponseShape(t *testing.T) {
	v := &fakeVerifier{result: &billing.VerifyPaymentResult{
		Paid:    true,
		Status:  "CONFIRMED",
		Payment: &asaas.Payment{ID: "pay_1", Status: "CONFIRMED"},
	}}

	w := postVerify(v, `{"paymentId":"pay_1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"paid":true`)
	assert.Contains(t, w.Body.String(), `"status":"CONFIRMED"`)
}

func TestVerifyPaymentMissingID(t *testing.T) {
	w := postVerify(&fakeVerifier{}, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPaymentGatewayErrorMapped(t *testing.T) {
	v := &fakeVerifier{err: &xerrors.GatewayError{Status: 404, Message: "payment not found"}}

	w := postVerify(v, `{"paymentId":"pay_missing"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "payment not found")
}
