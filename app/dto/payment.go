package dto

type StatusItemResponse struct {
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type RecurrenceResponse struct {
	IntervalUnit  string `json:"interval_unit"`
	IntervalValue int    `json:"interval_value"`
	DayOfMonth    *int   `json:"day_of_month,omitempty"`
	Month         *int   `json:"month,omitempty"`
	Count         *int   `json:"count,omitempty"`
}

type LineItemResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	UnitAmount  string              `json:"unit_amount"`
	Quantity    int                 `json:"quantity"`
	Recurrence  *RecurrenceResponse `json:"recurrence,omitempty"`
}

type GoCardlessResponse struct {
	RedirectFlowID string `json:"redirect_flow_id,omitempty"`
	MandateID      string `json:"mandate_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
}

type PaymentResponse struct {
	ID           int64                `json:"id"`
	CurrencyCode string               `json:"currency_code"`
	Description  string               `json:"description"`
	Status       string               `json:"status"`
	StatusItems  []StatusItemResponse `json:"status_items"`
	LineItems    []LineItemResponse   `json:"line_items"`
	GoCardless   *GoCardlessResponse  `json:"gocardless,omitempty"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
}

type CreatePaymentResponse struct {
	Payment     PaymentResponse `json:"payment"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

type PaymentEnvelopeResponse struct {
	Payment PaymentResponse `json:"payment"`
}
