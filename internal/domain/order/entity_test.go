// internal/domain/order/entity_test.go
package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := GenerateOrderNumber()
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n], "order numbers should not repeat: %s", n)
		seen[n] = true
	}
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
	}

	for _, tc := range cases {
		o := Order{Status: tc.from}
		assert.Equal(t, tc.allowed, o.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsPaidRequiresBothFields(t *testing.T) {
	now := time.Now().UTC()

	assert.False(t, (&Order{}).IsPaid())
	assert.False(t, (&Order{PaymentStatus: true}).IsPaid())
	assert.False(t, (&Order{PaymentDate: &now}).IsPaid())
	assert.True(t, (&Order{PaymentStatus: true, PaymentDate: &now}).IsPaid())
}

func TestBeforeSaveRecomputesTotal(t *testing.T) {
	o := Order{
		Subtotal:     decimal.RequireFromString("59.98"),
		Tax:          decimal.RequireFromString("4.80"),
		ShippingCost: decimal.RequireFromString("5.00"),
		// A stale total must be overwritten on save.
		Total: decimal.RequireFromString("1.00"),
	}

	require.NoError(t, o.BeforeSave(nil))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("69.78")), "got %s", o.Total)
}

func TestCancellationAndDeletionGuards(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusProcessing} {
		o := Order{Status: status}
		assert.True(t, o.CanBeCancelled(), string(status))
		assert.True(t, o.CanBeDeleted(), string(status))
	}

	for _, status := range []OrderStatus{OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		o := Order{Status: status}
		assert.False(t, o.CanBeCancelled(), string(status))
		assert.False(t, o.CanBeDeleted(), string(status))
	}
}

func TestOrderItemTotal(t *testing.T) {
	item := OrderItem{Quantity: 2, Price: decimal.RequireFromString("29.99")}
	assert.True(t, item.ItemTotal().Equal(decimal.RequireFromString("59.98")))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentMethodCreditCard))
	assert.True(t, ValidPaymentMethod(PaymentMethodPayPal))
	assert.True(t, ValidPaymentMethod(PaymentMethodBankTransfer))
	assert.False(t, ValidPaymentMethod("bitcoin"))
	assert.False(t, ValidPaymentMethod(""))
}
