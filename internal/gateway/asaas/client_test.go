// internal/gateway/asaas/client_test.go
package asaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCustomerSendsAccessToken(t *testing.T) {
	var gotToken, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("access_token")
		gotPath = r.URL.Path

		var req CreateCustomerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Maria Silva", req.Name)
		assert.True(t, req.NotificationDisabled)

		json.NewEncoder(w).Encode(Customer{ID: "cus_1", Name: req.Name})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "api-key-123")
	customer, err := client.CreateCustomer(context.Background(), CreateCustomerRequest{
		Name:                 "Maria Silva",
		Email:                "maria@example.com",
		CpfCnpj:              "12345678901",
		NotificationDisabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "cus_1", customer.ID)
	assert.Equal(t, "api-key-123", gotToken)
	assert.Equal(t, "/customers", gotPath)
}

func TestListSubscriptionPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub_1/payments", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"pay_1","value":29.9,"status":"PENDING","invoiceUrl":"https://x/i/1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	payments, err := client.ListSubscriptionPayments(context.Background(), "sub_1")
	require.NoError(t, err)

	require.Len(t, payments, 1)
	assert.Equal(t, "pay_1", payments[0].ID)
	assert.Equal(t, 29.9, payments[0].Value)
}

func TestListSubscriptionPaymentsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	payments, err := client.ListSubscriptionPayments(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestGatewayErrorDescriptionIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"invalid_cpfCnpj","description":"O CPF/CNPJ informado é inválido."}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	_, err := client.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "x"})
	require.Error(t, err)

	gwErr, ok := xerrors.AsGateway(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, gwErr.Status)
	assert.Equal(t, "O CPF/CNPJ informado é inválido.", gwErr.Message)
}

func TestGatewayErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	_, err := client.GetPayment(context.Background(), "pay_1")
	require.Error(t, err)

	gwErr, ok := xerrors.AsGateway(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, gwErr.Status)
	assert.Contains(t, gwErr.Message, "500")
}

func TestGetPixQRCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/pixQrCode", r.URL.Path)
		w.Write([]byte(`{"encodedImage":"iVBOR...","payload":"00020126..."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	qr, err := client.GetPixQRCode(context.Background(), "pay_1")
	require.NoError(t, err)

	assert.Equal(t, "iVBOR...", qr.EncodedImage)
	assert.Equal(t, "00020126...", qr.Payload)
}
