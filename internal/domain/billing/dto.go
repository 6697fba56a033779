// internal/domain/billing/dto.go
package billing

import "time"

type CreateSubscriptionRequest struct {
	PlanID      string      `json:"planId" binding:"required"`
	UserID      string      `json:"userId" binding:"required"`
	BillingType BillingType `json:"billingType"`
}

type PixData struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

type CreateSubscriptionResult struct {
	SubscriptionID string   `json:"subscriptionId"`
	PaymentID      string   `json:"paymentId"`
	InvoiceURL     string   `json:"invoiceUrl"`
	PixData        *PixData `json:"pixData,omitempty"`
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

type VerifyPaymentResult struct {
	Paid    bool        `json:"paid"`
	Status  string      `json:"status"`
	Payment interface{} `json:"payment"`
}

// WebhookPayment is the payment object carried by an Asaas notification.
// Only the fields the reconciler reads are mapped; the rest of the payload
// is ignored.
type WebhookPayment struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	Value      float64 `json:"value"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoiceUrl"`
}

type WebhookNotification struct {
	Event   string          `json:"event"`
	Payment *WebhookPayment `json:"payment"`
}

// PaymentEvent is pushed to websocket subscribers when a payment is
// reconciled.
type PaymentEvent struct {
	UserID         string        `json:"-"`
	PaymentID      string        `json:"payment_id"`
	LicenseID      string        `json:"license_id"`
	LicenseStatus  LicenseStatus `json:"license_status"`
	ExpirationDate *time.Time    `json:"expiration_date,omitempty"`
	ConfirmedAt    time.Time     `json:"confirmed_at"`
}
