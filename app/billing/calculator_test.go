package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

func intPtr(v int) *int {
	return &v
}

func TestMinorUnitFactor(t *testing.T) {
	for _, currency := range []string{"AUD", "CAD", "DKK", "EUR", "GBP", "NZD", "SEK", "USD", "eur"} {
		factor, ok := MinorUnitFactor(currency)
		assert.True(t, ok, currency)
		assert.Equal(t, int64(100), factor, currency)
	}

	_, ok := MinorUnitFactor("JPY")
	assert.False(t, ok)
	assert.False(t, IsSupportedCurrency(""))
	assert.True(t, IsSupportedCurrency("GBP"))
}

func TestAmount(t *testing.T) {
	cases := []struct {
		unit     string
		quantity int
		want     int64
	}{
		{"5", 3, 1500},
		{"10.5", 2, 2100},
		{"0.005", 1, 1},
		{"0.015", 1, 2},
		{"0.004", 1, 0},
		{"-0.005", 1, -1},
		{"19.99", 0, 0},
	}

	for _, tc := range cases {
		item := &entity.LineItem{UnitAmount: decimal.RequireFromString(tc.unit), Quantity: tc.quantity}
		assert.Equal(t, tc.want, Amount(item, 100), "%s x %d", tc.unit, tc.quantity)
	}
}

func TestProcessDate(t *testing.T) {
	reference := time.Date(2019, time.December, 21, 0, 0, 0, 0, time.UTC)

	t.Run("yearly clamps day and defaults to next month", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "yearly", DayOfMonth: intPtr(30)}, reference)
		require.NotNil(t, month)
		require.NotNil(t, day)
		assert.Equal(t, "january", *month)
		assert.Equal(t, -1, *day)
	})

	t.Run("yearly keeps days up to 28", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "yearly", DayOfMonth: intPtr(28)}, time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC))
		require.NotNil(t, month)
		assert.Equal(t, "april", *month)
		assert.Equal(t, 28, *day)
	})

	t.Run("yearly honors explicit month", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "yearly", DayOfMonth: intPtr(5), Month: intPtr(6)}, reference)
		require.NotNil(t, month)
		assert.Equal(t, "june", *month)
		assert.Equal(t, 5, *day)
	})

	t.Run("yearly without day", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "yearly"}, reference)
		assert.Nil(t, month)
		assert.Nil(t, day)
	})

	// Monthly anchors are not clamped, unlike yearly ones.
	t.Run("monthly passes day through and ignores month", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "monthly", DayOfMonth: intPtr(11), Month: intPtr(1)}, reference)
		assert.Nil(t, month)
		require.NotNil(t, day)
		assert.Equal(t, 11, *day)

		_, day = ProcessDate(&entity.Recurrence{IntervalUnit: "monthly", DayOfMonth: intPtr(31)}, reference)
		assert.Equal(t, 31, *day)
	})

	t.Run("monthly without day", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "monthly", Month: intPtr(3)}, reference)
		assert.Nil(t, month)
		assert.Nil(t, day)
	})

	t.Run("weekly ignores anchors", func(t *testing.T) {
		month, day := ProcessDate(&entity.Recurrence{IntervalUnit: "weekly", DayOfMonth: intPtr(11), Month: intPtr(1)}, reference)
		assert.Nil(t, month)
		assert.Nil(t, day)
	})

	t.Run("no recurrence", func(t *testing.T) {
		month, day := ProcessDate(nil, reference)
		assert.Nil(t, month)
		assert.Nil(t, day)
	})
}

func TestProcessDateDoesNotAliasInput(t *testing.T) {
	recurrence := &entity.Recurrence{IntervalUnit: "monthly", DayOfMonth: intPtr(4)}
	_, day := ProcessDate(recurrence, time.Now())
	*day = 20
	assert.Equal(t, 4, *recurrence.DayOfMonth)
}

func fixturePayment() (*entity.Payment, *entity.LineItem) {
	payment := entity.NewPayment("EUR", "payment description", time.Now())
	payment.ID = 42
	item := &entity.LineItem{
		Name:        "line_item_name",
		Description: "line item description",
		UnitAmount:  decimal.NewFromInt(5),
		Quantity:    3,
		Recurrence:  &entity.Recurrence{IntervalUnit: "monthly", DayOfMonth: intPtr(4)},
	}
	payment.LineItems = []*entity.LineItem{item}
	return payment, item
}

func TestBuildSubscription(t *testing.T) {
	payment, item := fixturePayment()
	calc := Compute(item, 100, time.Date(2019, time.December, 21, 0, 0, 0, 0, time.UTC))

	req := BuildSubscription(payment, item, calc, "MD123")
	assert.Equal(t, int64(1500), req.Amount)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "line item description", req.Name)
	assert.Equal(t, "monthly", req.IntervalUnit)
	assert.Equal(t, 1, req.Interval)
	require.NotNil(t, req.DayOfMonth)
	assert.Equal(t, 4, *req.DayOfMonth)
	assert.Nil(t, req.Month)
	assert.Nil(t, req.Count)
	assert.Equal(t, map[string]string{"pid": "42", "name": "line_item_name"}, req.Metadata)
	assert.Equal(t, "MD123", req.Links.Mandate)
}

func TestBuildSubscriptionIntervalAndCount(t *testing.T) {
	payment, item := fixturePayment()
	item.Recurrence = &entity.Recurrence{IntervalUnit: "weekly", IntervalValue: intPtr(2), Count: intPtr(6)}

	req := BuildSubscription(payment, item, Compute(item, 100, time.Now()), "MD1")
	assert.Equal(t, 2, req.Interval)
	require.NotNil(t, req.Count)
	assert.Equal(t, 6, *req.Count)
	assert.Nil(t, req.DayOfMonth)
}

func TestBuildPayment(t *testing.T) {
	payment, item := fixturePayment()
	item.Recurrence = nil

	req := BuildPayment(payment, item, Compute(item, 100, time.Now()), "MD123")
	assert.Equal(t, int64(1500), req.Amount)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "line item description", req.Description)
	assert.Equal(t, "42", req.Metadata[MetadataPaymentID])
	assert.Equal(t, "MD123", req.Links.Mandate)
}
