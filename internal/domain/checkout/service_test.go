// internal/domain/checkout/service_test.go
package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/cart"
	"github.com/your-org/jewelry-storefront/internal/domain/order"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"github.com/your-org/jewelry-storefront/internal/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway records intent traffic instead of calling a provider.
type fakeGateway struct {
	createErr  error
	intents    []createdIntent
	confirmed  []string
	confirmErr error
}

type createdIntent struct {
	amount   int64
	currency string
	metadata map[string]string
}

func (f *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.intents = append(f.intents, createdIntent{amount: amount, currency: currency, metadata: metadata})
	return &payment.Intent{
		ID:           fmt.Sprintf("pi_%d", len(f.intents)),
		Amount:       amount,
		Currency:     currency,
		Status:       "requires_payment_method",
		ClientSecret: "pi_secret_123",
	}, nil
}

func (f *fakeGateway) Confirm(ctx context.Context, intentID string) (*payment.Intent, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed = append(f.confirmed, intentID)
	return &payment.Intent{ID: intentID, Status: "succeeded"}, nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	carts   *cart.Service
	gateway *fakeGateway
	userID  uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&product.Category{}, &product.Product{},
		&cart.UserCart{}, &cart.CartItem{},
		&order.Order{}, &order.OrderItem{}, &order.StatusHistory{},
	))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Order.TaxRate = decimal.RequireFromString("0.08")
	cfg.Order.ShippingCost = decimal.RequireFromString("5.00")
	cfg.Payment.Currency = "usd"

	u := user.User{Email: "shopper@example.com", Password: "hashed", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, db.Create(&u).Error)

	gateway := &fakeGateway{}
	carts := cart.NewService(db, client, cfg)
	return &fixture{
		db:      db,
		svc:     NewService(db, cfg, carts, gateway, nil, nil),
		carts:   carts,
		gateway: gateway,
		userID:  u.ID,
	}
}

func (f *fixture) seedProduct(t *testing.T, price string, stock int) *product.Product {
	t.Helper()
	p := product.Product{
		SKU:        fmt.Sprintf("SKU-%s-%d", t.Name(), stock),
		Name:       "Silver Pendant",
		Slug:       fmt.Sprintf("pendant-%s-%d", t.Name(), stock),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Available:  true,
		CategoryID: 1,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func (f *fixture) fillCart(t *testing.T, productID uint, quantity int) {
	t.Helper()
	_, err := f.carts.Cart(&f.userID, "").Add(context.Background(), productID, quantity, false)
	require.NoError(t, err)
}

func validRequest(method order.PaymentMethod) *CheckoutRequest {
	return &CheckoutRequest{
		ShippingAddress: "12 Main St, Springfield",
		BillingOption:   "same",
		PaymentMethod:   method,
		AgreeTerms:      true,
	}
}

func TestPlaceOrderPayPalTotalsAndImmediatePayment(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "29.99", 10)
	f.fillCart(t, p.ID, 2)

	result, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodPayPal))
	require.NoError(t, err)

	o := result.Order
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, o.OrderNumber)
	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("59.98")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Tax.Equal(decimal.RequireFromString("4.80")), "tax %s", o.Tax)
	assert.True(t, o.ShippingCost.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("69.78")), "total %s", o.Total)

	assert.True(t, o.IsPaid())
	assert.Empty(t, result.ClientSecret)
	assert.Empty(t, f.gateway.intents)

	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.Items[0].Price.Equal(decimal.RequireFromString("29.99")))

	// The cart is cleared once the order has committed.
	summary, err := f.carts.Cart(&f.userID, "").Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestPlaceOrderTaxRoundsHalfUp(t *testing.T) {
	f := newFixture(t)
	// 10.31 * 0.08 = 0.8248 -> 0.82, 10.94 * 0.08 = 0.8752 -> 0.88
	p := f.seedProduct(t, "10.31", 10)
	f.fillCart(t, p.ID, 1)

	result, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodBankTransfer))
	require.NoError(t, err)
	assert.True(t, result.Order.Tax.Equal(decimal.RequireFromString("0.82")), "tax %s", result.Order.Tax)

	q := f.seedProduct(t, "10.94", 10)
	f.fillCart(t, q.ID, 1)

	result, err = f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodBankTransfer))
	require.NoError(t, err)
	assert.True(t, result.Order.Tax.Equal(decimal.RequireFromString("0.88")), "tax %s", result.Order.Tax)
}

func TestPlaceOrderCreditCardCreatesIntent(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "29.99", 10)
	f.fillCart(t, p.ID, 2)

	result, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodCreditCard))
	require.NoError(t, err)

	o := result.Order
	assert.False(t, o.IsPaid(), "card orders stay unpaid until the webhook arrives")
	assert.Equal(t, order.OrderStatusPending, o.Status)
	assert.Equal(t, "pi_secret_123", result.ClientSecret)

	require.Len(t, f.gateway.intents, 1)
	intent := f.gateway.intents[0]
	assert.Equal(t, int64(6978), intent.amount)
	assert.Equal(t, "usd", intent.currency)
	assert.Equal(t, o.OrderNumber, intent.metadata["order_number"])
	assert.Empty(t, f.gateway.confirmed)
}

func TestPlaceOrderAutoConfirm(t *testing.T) {
	f := newFixture(t)
	f.svc.config.Payment.AutoConfirm = true
	p := f.seedProduct(t, "29.99", 10)
	f.fillCart(t, p.ID, 1)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodCreditCard))
	require.NoError(t, err)
	assert.Equal(t, []string{"pi_1"}, f.gateway.confirmed)
}

func TestPlaceOrderGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = &payment.Error{Code: "payment_error", Message: "Your card was declined."}
	p := f.seedProduct(t, "29.99", 10)
	f.fillCart(t, p.ID, 2)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodCreditCard))
	var perr *payment.Error
	require.ErrorAs(t, err, &perr)

	// Nothing committed and the cart is intact.
	var count int64
	f.db.Model(&order.Order{}).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&order.OrderItem{}).Count(&count)
	assert.Zero(t, count)

	summary, err := f.carts.Cart(&f.userID, "").Get(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 2, summary.Items[0].Quantity)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		mut   func(*CheckoutRequest)
		field string
	}{
		{"missing shipping address", func(r *CheckoutRequest) { r.ShippingAddress = "" }, "shipping_address"},
		{"different billing without address", func(r *CheckoutRequest) { r.BillingOption = "different" }, "billing_address"},
		{"unknown billing option", func(r *CheckoutRequest) { r.BillingOption = "split" }, "billing_option"},
		{"unknown payment method", func(r *CheckoutRequest) { r.PaymentMethod = "bitcoin" }, "payment_method"},
		{"terms not agreed", func(r *CheckoutRequest) { r.AgreeTerms = false }, "agree_terms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(order.PaymentMethodPayPal)
			tc.mut(req)

			_, err := f.svc.PlaceOrder(context.Background(), f.userID, req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodPayPal))
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderBillingAddressStoredOnlyWhenDifferent(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "29.99", 10)

	f.fillCart(t, p.ID, 1)
	req := validRequest(order.PaymentMethodPayPal)
	req.BillingAddress = "should be ignored while billing is same"
	result, err := f.svc.PlaceOrder(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.Empty(t, result.Order.BillingAddress)

	f.fillCart(t, p.ID, 1)
	req = validRequest(order.PaymentMethodPayPal)
	req.BillingOption = "different"
	req.BillingAddress = "99 Billing Rd"
	result, err = f.svc.PlaceOrder(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.Equal(t, "99 Billing Rd", result.Order.BillingAddress)
}

func TestPlaceOrderBillsCurrentPrices(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "29.99", 10)
	f.fillCart(t, p.ID, 2)

	// Price changes after the add: the cart line keeps the old price but
	// order items are billed at the current one.
	err := f.db.Model(&product.Product{}).Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString("34.99")).Error
	require.NoError(t, err)

	result, err := f.svc.PlaceOrder(context.Background(), f.userID, validRequest(order.PaymentMethodPayPal))
	require.NoError(t, err)
	require.Len(t, result.Order.Items, 1)
	assert.True(t, result.Order.Items[0].Price.Equal(decimal.RequireFromString("34.99")))
	// Subtotal still reflects the cart snapshot.
	assert.True(t, result.Order.Subtotal.Equal(decimal.RequireFromString("59.98")))
}
