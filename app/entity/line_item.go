package entity

import "github.com/shopspring/decimal"

const (
	IntervalUnitYearly  = "yearly"
	IntervalUnitMonthly = "monthly"
	IntervalUnitWeekly  = "weekly"
)

type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Quantity    int             `json:"quantity"`
	Recurrence  *Recurrence     `json:"recurrence,omitempty"`
}

// IsRecurring reports whether the item is billed as a subscription. A
// recurrence without an interval unit is a one-off.
func (l *LineItem) IsRecurring() bool {
	return l.Recurrence != nil && l.Recurrence.IntervalUnit != ""
}

type Recurrence struct {
	IntervalUnit  string `json:"interval_unit,omitempty"`
	IntervalValue *int   `json:"interval_value,omitempty"`
	DayOfMonth    *int   `json:"day_of_month,omitempty"`
	Month         *int   `json:"month,omitempty"`
	Count         *int   `json:"count,omitempty"`
}

func (r *Recurrence) Interval() int {
	if r == nil || r.IntervalValue == nil || *r.IntervalValue <= 0 {
		return 1
	}
	return *r.IntervalValue
}

func IsSupportedIntervalUnit(unit string) bool {
	switch unit {
	case IntervalUnitYearly, IntervalUnitMonthly, IntervalUnitWeekly:
		return true
	}
	return false
}
