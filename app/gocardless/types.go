package gocardless

import "github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"

type Links struct {
	Creditor string `json:"creditor,omitempty"`
	Mandate  string `json:"mandate,omitempty"`
	Customer string `json:"customer,omitempty"`
}

type CreateRedirectFlowRequest struct {
	Description        string               `json:"description,omitempty"`
	SessionToken       string               `json:"session_token"`
	SuccessRedirectURL string               `json:"success_redirect_url"`
	PrefilledCustomer  *entity.CustomerData `json:"prefilled_customer,omitempty"`
	Links              *Links               `json:"links,omitempty"`
}

type RedirectFlow struct {
	ID                 string `json:"id"`
	Description        string `json:"description,omitempty"`
	SessionToken       string `json:"session_token,omitempty"`
	SuccessRedirectURL string `json:"success_redirect_url,omitempty"`
	RedirectURL        string `json:"redirect_url,omitempty"`
	Links              Links  `json:"links"`
}

type CreatePaymentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Links       Links             `json:"links"`
}

type Payment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status,omitempty"`
}

type CreateSubscriptionRequest struct {
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Name         string            `json:"name,omitempty"`
	IntervalUnit string            `json:"interval_unit"`
	Interval     int               `json:"interval"`
	DayOfMonth   *int              `json:"day_of_month,omitempty"`
	Month        *string           `json:"month,omitempty"`
	Count        *int              `json:"count,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Links        Links             `json:"links"`
}

type Subscription struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	IntervalUnit string `json:"interval_unit"`
	Status       string `json:"status,omitempty"`
}

type redirectFlowEnvelope struct {
	RedirectFlows RedirectFlow `json:"redirect_flows"`
}

type createRedirectFlowEnvelope struct {
	RedirectFlows CreateRedirectFlowRequest `json:"redirect_flows"`
}

type completeRedirectFlowEnvelope struct {
	Data struct {
		SessionToken string `json:"session_token"`
	} `json:"data"`
}

type paymentEnvelope struct {
	Payments Payment `json:"payments"`
}

type createPaymentEnvelope struct {
	Payments CreatePaymentRequest `json:"payments"`
}

type subscriptionEnvelope struct {
	Subscriptions Subscription `json:"subscriptions"`
}

type createSubscriptionEnvelope struct {
	Subscriptions CreateSubscriptionRequest `json:"subscriptions"`
}
