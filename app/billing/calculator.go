package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/gocardless"
)

// LastDayOfMonth is the provider's day_of_month value for the last day of a
// month. Yearly anchors after the 28th are sent as this value.
const LastDayOfMonth = -1

const maxYearlyDayOfMonth = 28

var minorUnitFactors = map[string]int64{
	"AUD": 100,
	"CAD": 100,
	"DKK": 100,
	"EUR": 100,
	"GBP": 100,
	"NZD": 100,
	"SEK": 100,
	"USD": 100,
}

func MinorUnitFactor(currency string) (int64, bool) {
	factor, ok := minorUnitFactors[strings.ToUpper(currency)]
	return factor, ok
}

func IsSupportedCurrency(currency string) bool {
	_, ok := MinorUnitFactor(currency)
	return ok
}

type Calculation struct {
	AmountMinorUnits int64
	Month            *string
	DayOfMonth       *int
}

// Amount converts the line item total to minor units. Halves round away from
// zero.
func Amount(item *entity.LineItem, factor int64) int64 {
	return item.UnitAmount.
		Mul(decimal.NewFromInt(int64(item.Quantity))).
		Mul(decimal.NewFromInt(factor)).
		Round(0).
		IntPart()
}

// ProcessDate derives the month and day_of_month anchors of a recurrence.
//
// yearly: day_of_month above 28 becomes LastDayOfMonth and month defaults to
// the month after reference. Without day_of_month both are nil.
// monthly: day_of_month is passed through unclamped, month is never set.
// weekly: both are always nil.
func ProcessDate(recurrence *entity.Recurrence, reference time.Time) (*string, *int) {
	if recurrence == nil {
		return nil, nil
	}

	switch recurrence.IntervalUnit {
	case entity.IntervalUnitYearly:
		if recurrence.DayOfMonth == nil {
			return nil, nil
		}
		day := *recurrence.DayOfMonth
		if day > maxYearlyDayOfMonth {
			day = LastDayOfMonth
		}
		month := nextMonth(reference)
		if recurrence.Month != nil && *recurrence.Month >= 1 && *recurrence.Month <= 12 {
			month = time.Month(*recurrence.Month)
		}
		name := monthName(month)
		return &name, &day
	case entity.IntervalUnitMonthly:
		if recurrence.DayOfMonth == nil {
			return nil, nil
		}
		day := *recurrence.DayOfMonth
		return nil, &day
	default:
		return nil, nil
	}
}

func Compute(item *entity.LineItem, factor int64, reference time.Time) Calculation {
	month, day := ProcessDate(item.Recurrence, reference)
	return Calculation{
		AmountMinorUnits: Amount(item, factor),
		Month:            month,
		DayOfMonth:       day,
	}
}

func BuildSubscription(payment *entity.Payment, item *entity.LineItem, calc Calculation, mandateID string) gocardless.CreateSubscriptionRequest {
	req := gocardless.CreateSubscriptionRequest{
		Amount:       calc.AmountMinorUnits,
		Currency:     strings.ToUpper(payment.CurrencyCode),
		Name:         item.Description,
		IntervalUnit: item.Recurrence.IntervalUnit,
		Interval:     item.Recurrence.Interval(),
		DayOfMonth:   calc.DayOfMonth,
		Month:        calc.Month,
		Metadata:     metadata(payment, item),
		Links:        gocardless.Links{Mandate: mandateID},
	}
	if item.Recurrence.Count != nil {
		count := *item.Recurrence.Count
		req.Count = &count
	}
	return req
}

func BuildPayment(payment *entity.Payment, item *entity.LineItem, calc Calculation, mandateID string) gocardless.CreatePaymentRequest {
	return gocardless.CreatePaymentRequest{
		Amount:      calc.AmountMinorUnits,
		Currency:    strings.ToUpper(payment.CurrencyCode),
		Description: item.Description,
		Metadata:    metadata(payment, item),
		Links:       gocardless.Links{Mandate: mandateID},
	}
}

// Metadata keys attached to every provider payment and subscription.
const (
	MetadataPaymentID    = "pid"
	MetadataLineItemName = "name"
)

func metadata(payment *entity.Payment, item *entity.LineItem) map[string]string {
	return map[string]string{
		MetadataPaymentID:    strconv.FormatInt(payment.ID, 10),
		MetadataLineItemName: item.Name,
	}
}

func nextMonth(reference time.Time) time.Month {
	if reference.Month() == time.December {
		return time.January
	}
	return reference.Month() + 1
}

func monthName(month time.Month) string {
	return strings.ToLower(month.String())
}
