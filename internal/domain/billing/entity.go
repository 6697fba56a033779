// internal/domain/billing/entity.go
package billing

import (
	"database/sql"
	"strings"
	"time"
)

type PlanType string

const (
	PlanMensal    PlanType = "Mensal"
	PlanAnual     PlanType = "Anual"
	PlanVitalicia PlanType = "Vitalícia"
)

type BillingType string

const (
	BillingBoleto     BillingType = "BOLETO"
	BillingCreditCard BillingType = "CREDIT_CARD"
	BillingPix        BillingType = "PIX"
	BillingUndefined  BillingType = "UNDEFINED"
)

type LicenseStatus string

const (
	LicensePendente LicenseStatus = "Pendente"
	LicenseAtiva    LicenseStatus = "Ativa"
	LicenseExpirada LicenseStatus = "Expirada"
)

type InvoiceStatus string

const (
	InvoicePendente InvoiceStatus = "Pendente"
	InvoicePago     InvoiceStatus = "Pago"
)

// licenseTransitions is the set of legal license status transitions.
// Anything not listed here is rejected instead of relying on call-site
// discipline.
var licenseTransitions = map[LicenseStatus][]LicenseStatus{
	LicensePendente: {LicenseAtiva, LicenseExpirada},
	LicenseAtiva:    {LicenseExpirada},
	LicenseExpirada: {},
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoicePendente: {InvoicePago},
	InvoicePago:     {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// license state change.
func (s LicenseStatus) CanTransitionTo(next LicenseStatus) bool {
	for _, allowed := range licenseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// invoice state change. Pago is terminal and never reversed.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExpirationFor computes the license expiration for a plan type confirmed
// at the given instant. Lifetime plans never expire and return an invalid
// NullTime.
func ExpirationFor(planType PlanType, confirmedAt time.Time) sql.NullTime {
	switch planType {
	case PlanAnual:
		return sql.NullTime{Time: confirmedAt.AddDate(1, 0, 0), Valid: true}
	case PlanVitalicia:
		return sql.NullTime{}
	default:
		return sql.NullTime{Time: confirmedAt.AddDate(0, 1, 0), Valid: true}
	}
}

// DigitsOnly strips formatting from a CPF/CNPJ, keeping only the digits.
// Profiles commonly store the frontend-formatted form ("123.456.789-01")
// while the gateway accepts digits exclusively.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BillingCycleFor maps a plan type to the Asaas subscription cycle.
// Lifetime plans bill monthly on the gateway side and are cancelled
// manually after the first confirmed payment.
func BillingCycleFor(planType PlanType) string {
	if planType == PlanAnual {
		return "YEARLY"
	}
	return "MONTHLY"
}

type Profile struct {
	ID              string         `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Email           string         `json:"email" db:"email"`
	CpfCnpj         string         `json:"cpf_cnpj" db:"cpf_cnpj"`
	AsaasCustomerID sql.NullString `json:"asaas_customer_id,omitempty" db:"asaas_customer_id"`
	ActiveLicenseID sql.NullString `json:"active_license_id,omitempty" db:"active_license_id"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

type LicensePlan struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Type      PlanType  `json:"type" db:"type"`
	Price     float64   `json:"price" db:"price"`
	Features  []string  `json:"features,omitempty" db:"features"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type License struct {
	ID                  string        `json:"id" db:"id"`
	UserID              string        `json:"user_id" db:"user_id"`
	PlanID              string        `json:"plan_id" db:"plan_id"`
	Name                string        `json:"name" db:"name"`
	Type                PlanType      `json:"type" db:"type"`
	Value               float64       `json:"value" db:"value"`
	Status              LicenseStatus `json:"status" db:"status"`
	ExpirationDate      sql.NullTime  `json:"expiration_date,omitempty" db:"expiration_date"`
	AsaasSubscriptionID string        `json:"asaas_subscription_id" db:"asaas_subscription_id"`
	AsaasPaymentID      string        `json:"asaas_payment_id" db:"asaas_payment_id"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

type Invoice struct {
	ID             string        `json:"id" db:"id"`
	UserID         string        `json:"user_id" db:"user_id"`
	LicenseID      string        `json:"license_id" db:"license_id"`
	Amount         float64       `json:"amount" db:"amount"`
	Status         InvoiceStatus `json:"status" db:"status"`
	AsaasPaymentID string        `json:"asaas_payment_id" db:"asaas_payment_id"`
	InvoiceURL     string        `json:"invoice_url" db:"invoice_url"`
	ConfirmedAt    sql.NullTime  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}
