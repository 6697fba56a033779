// internal/gateway/asaas/types.go
package asaas

// CreateCustomerRequest creates a customer in the gateway's namespace.
// CpfCnpj must be digits only.
type CreateCustomerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	CpfCnpj              string `json:"cpfCnpj"`
	NotificationDisabled bool   `json:"notificationDisabled"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateSubscriptionRequest creates a recurring charge. NextDueDate uses
// the gateway's YYYY-MM-DD date format.
type CreateSubscriptionRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	NextDueDate       string  `json:"nextDueDate"`
	Cycle             string  `json:"cycle"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Payment struct {
	ID           string  `json:"id"`
	Customer     string  `json:"customer"`
	Subscription string  `json:"subscription"`
	Value        float64 `json:"value"`
	Status       string  `json:"status"`
	BillingType  string  `json:"billingType"`
	DueDate      string  `json:"dueDate"`
	InvoiceURL   string  `json:"invoiceUrl"`
}

type PixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type paymentListResponse struct {
	Data []Payment `json:"data"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
