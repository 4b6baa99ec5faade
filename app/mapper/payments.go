package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-gocardless-payments/app/dto"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

// PaymentToResponse maps a payment for API output. The session token stays
// internal.
func PaymentToResponse(item *entity.Payment) dto.PaymentResponse {
	if item == nil {
		return dto.PaymentResponse{}
	}

	resp := dto.PaymentResponse{
		ID:           item.ID,
		CurrencyCode: item.CurrencyCode,
		Description:  item.Description,
		Status:       string(item.Status()),
		StatusItems:  make([]dto.StatusItemResponse, 0, len(item.StatusItems)),
		LineItems:    LineItemsToResponse(item.LineItems),
		CreatedAt:    formatTime(item.CreatedAt),
		UpdatedAt:    formatTime(item.UpdatedAt),
	}
	for _, status := range item.StatusItems {
		resp.StatusItems = append(resp.StatusItems, dto.StatusItemResponse{
			Status:    string(status.Status),
			CreatedAt: formatTime(status.CreatedAt),
		})
	}
	if state := item.GoCardless; state != nil {
		resp.GoCardless = &dto.GoCardlessResponse{
			RedirectFlowID: state.RedirectFlowID,
			MandateID:      state.MandateID,
			CustomerID:     state.CustomerID,
		}
	}
	return resp
}

func LineItemsToResponse(items []*entity.LineItem) []dto.LineItemResponse {
	result := make([]dto.LineItemResponse, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp := dto.LineItemResponse{
			Name:        item.Name,
			Description: item.Description,
			UnitAmount:  item.UnitAmount.String(),
			Quantity:    item.Quantity,
		}
		if rec := item.Recurrence; rec != nil {
			resp.Recurrence = &dto.RecurrenceResponse{
				IntervalUnit:  rec.IntervalUnit,
				IntervalValue: rec.Interval(),
				DayOfMonth:    rec.DayOfMonth,
				Month:         rec.Month,
				Count:         rec.Count,
			}
		}
		result = append(result, resp)
	}
	return result
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
