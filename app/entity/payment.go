package entity

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated              PaymentStatus = "payment_status_new"
	PaymentStatusRedirectFlowCreated  PaymentStatus = "gocardless_payment_redirect_flow_created"
	PaymentStatusRedirectFlowReturned PaymentStatus = "gocardless_payment_redirect_flow_returned"
	PaymentStatusMandateCreated       PaymentStatus = "gocardless_payment_mandate_created"
	PaymentStatusSuccess              PaymentStatus = "payment_status_success"
	PaymentStatusFailed               PaymentStatus = "payment_status_failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

func (s PaymentStatus) IsKnown() bool {
	switch s {
	case PaymentStatusCreated,
		PaymentStatusRedirectFlowCreated,
		PaymentStatusRedirectFlowReturned,
		PaymentStatusMandateCreated,
		PaymentStatusSuccess,
		PaymentStatusFailed:
		return true
	}
	return false
}

type StatusItem struct {
	Status    PaymentStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time     `json:"created_at" dynamodbav:"created_at"`
}

// Payment is the aggregate driven through the redirect flow. StatusItems is an
// append-only history and only its last entry is the current status.
type Payment struct {
	ID           int64
	CurrencyCode string
	Description  string
	LineItems    []*LineItem
	StatusItems  []StatusItem
	MethodData   MethodData
	GoCardless   *FlowState
	Context      map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewPayment(currencyCode, description string, now time.Time) *Payment {
	return &Payment{
		CurrencyCode: currencyCode,
		Description:  description,
		StatusItems:  []StatusItem{{Status: PaymentStatusCreated, CreatedAt: now}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p *Payment) Status() PaymentStatus {
	if len(p.StatusItems) == 0 {
		return PaymentStatusCreated
	}
	return p.StatusItems[len(p.StatusItems)-1].Status
}

func (p *Payment) SetStatus(status PaymentStatus, now time.Time) {
	p.StatusItems = append(p.StatusItems, StatusItem{Status: status, CreatedAt: now})
	p.UpdatedAt = now
}

// BillableLineItems returns the line items with a positive quantity, in order.
func (p *Payment) BillableLineItems() []*LineItem {
	items := make([]*LineItem, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		if item != nil && item.Quantity > 0 {
			items = append(items, item)
		}
	}
	return items
}

type MethodData struct {
	CustomerData CustomerData `json:"customer_data" dynamodbav:"customer_data"`
}

// CustomerData is sent as the redirect flow's prefilled_customer.
type CustomerData struct {
	GivenName    string `json:"given_name,omitempty" dynamodbav:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty" dynamodbav:"family_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty" dynamodbav:"company_name,omitempty"`
	Email        string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty" dynamodbav:"phone_number,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty" dynamodbav:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty" dynamodbav:"address_line2,omitempty"`
	AddressLine3 string `json:"address_line3,omitempty" dynamodbav:"address_line3,omitempty"`
	City         string `json:"city,omitempty" dynamodbav:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty" dynamodbav:"postal_code,omitempty"`
	Region       string `json:"region,omitempty" dynamodbav:"region,omitempty"`
	CountryCode  string `json:"country_code,omitempty" dynamodbav:"country_code,omitempty"`
}

// FlowState correlates a payment with its provider-side redirect flow.
type FlowState struct {
	RedirectFlowID string `json:"redirect_flow_id" dynamodbav:"redirect_flow_id"`
	SessionToken   string `json:"session_token" dynamodbav:"session_token"`
	MandateID      string `json:"mandate_id,omitempty" dynamodbav:"mandate_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty" dynamodbav:"customer_id,omitempty"`
}

func (f *FlowState) HasRedirectFlow() bool {
	return f != nil && f.RedirectFlowID != "" && f.SessionToken != ""
}

func (f *FlowState) HasMandate() bool {
	return f != nil && f.MandateID != ""
}
