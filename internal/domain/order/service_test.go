// internal/domain/order/service_test.go
package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"github.com/your-org/jewelry-storefront/internal/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeRefundGateway records refund traffic instead of calling a provider.
type fakeRefundGateway struct {
	intents    []payment.Intent
	listErr    error
	refundErr  error
	refundedID []string
}

func (f *fakeRefundGateway) ListIntents(ctx context.Context, metadataFilter map[string]string) ([]payment.Intent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.intents, nil
}

func (f *fakeRefundGateway) CreateRefund(ctx context.Context, intentID, reason string) (*payment.Refund, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refundedID = append(f.refundedID, intentID)
	return &payment.Refund{ID: "re_" + intentID, PaymentIntent: intentID, Status: "succeeded"}, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&product.Category{}, &product.Product{},
		&Order{}, &OrderItem{}, &StatusHistory{},
	))
	return db
}

func testService(t *testing.T, db *gorm.DB, gateway RefundGateway) *Service {
	t.Helper()
	cfg := &config.Config{}
	return NewService(db, cfg, gateway, nil, nil)
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *product.Product {
	t.Helper()
	p := product.Product{
		SKU:        fmt.Sprintf("SKU-%s-%d", t.Name(), stock),
		Name:       "Solitaire Diamond Ring",
		Slug:       fmt.Sprintf("ring-%s-%d", t.Name(), stock),
		Price:      decimal.RequireFromString("29.99"),
		Stock:      stock,
		Available:  true,
		CategoryID: 1,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func seedOrder(t *testing.T, db *gorm.DB, userID uint, status OrderStatus, paid bool, items []OrderItem) *Order {
	t.Helper()
	o := Order{
		UserID:          userID,
		Status:          status,
		PaymentMethod:   PaymentMethodCreditCard,
		Subtotal:        decimal.RequireFromString("59.98"),
		Tax:             decimal.RequireFromString("4.80"),
		ShippingCost:    decimal.RequireFromString("5.00"),
		ShippingAddress: "12 Main St, Springfield",
		Items:           items,
	}
	if paid {
		now := time.Now().UTC()
		o.PaymentStatus = true
		o.PaymentDate = &now
	}
	require.NoError(t, db.Create(&o).Error)
	return &o
}

func TestUpdateStatusDecrementsStockExactlyOnce(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	p := seedProduct(t, db, 10)
	o := seedOrder(t, db, 1, OrderStatusPending, true, []OrderItem{
		{ProductID: p.ID, SKU: p.SKU, Name: p.Name, Quantity: 2, Price: p.Price},
	})

	_, err := svc.UpdateStatus(context.Background(), o.ID,
		&UpdateStatusRequest{Status: OrderStatusProcessing}, 99)
	require.NoError(t, err)

	var got product.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 8, got.Stock)

	// Re-submitting the same status is a no-op for side effects.
	_, err = svc.UpdateStatus(context.Background(), o.ID,
		&UpdateStatusRequest{Status: OrderStatusProcessing, TrackingNumber: "TRK-1"}, 99)
	require.NoError(t, err)

	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 8, got.Stock)

	// Later transitions never touch stock again.
	_, err = svc.UpdateStatus(context.Background(), o.ID,
		&UpdateStatusRequest{Status: OrderStatusShipped}, 99)
	require.NoError(t, err)

	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 8, got.Stock)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	o := seedOrder(t, db, 1, OrderStatusPending, false, nil)

	_, err := svc.UpdateStatus(context.Background(), o.ID,
		&UpdateStatusRequest{Status: OrderStatusDelivered}, 99)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var got Order
	require.NoError(t, db.First(&got, o.ID).Error)
	assert.Equal(t, OrderStatusPending, got.Status)
}

func TestUpdateStatusRecordsHistory(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	o := seedOrder(t, db, 1, OrderStatusPending, false, nil)

	_, err := svc.UpdateStatus(context.Background(), o.ID,
		&UpdateStatusRequest{Status: OrderStatusProcessing, Comment: "picking started"}, 42)
	require.NoError(t, err)

	var history []StatusHistory
	require.NoError(t, db.Where("order_id = ?", o.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, OrderStatusProcessing, history[0].Status)
	assert.Equal(t, "picking started", history[0].Comment)
	assert.Equal(t, uint(42), history[0].CreatedBy)
}

func TestCancelOrderRefundsEveryIntentOnce(t *testing.T) {
	db := testDB(t)
	gateway := &fakeRefundGateway{
		intents: []payment.Intent{{ID: "pi_1"}, {ID: "pi_2"}},
	}
	svc := testService(t, db, gateway)

	o := seedOrder(t, db, 7, OrderStatusPending, true, nil)

	cancelled, err := svc.CancelOrder(context.Background(), 7, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"pi_1", "pi_2"}, gateway.refundedID)
}

func TestCancelOrderSkipsRefundWhenUnpaid(t *testing.T) {
	db := testDB(t)
	gateway := &fakeRefundGateway{
		intents: []payment.Intent{{ID: "pi_1"}},
	}
	svc := testService(t, db, gateway)

	o := seedOrder(t, db, 7, OrderStatusPending, false, nil)

	_, err := svc.CancelOrder(context.Background(), 7, o.ID)
	require.NoError(t, err)
	assert.Empty(t, gateway.refundedID)
}

func TestCancelOrderRefundFailureDoesNotFailCancellation(t *testing.T) {
	db := testDB(t)
	gateway := &fakeRefundGateway{
		intents:   []payment.Intent{{ID: "pi_1"}},
		refundErr: fmt.Errorf("provider down"),
	}
	svc := testService(t, db, gateway)

	o := seedOrder(t, db, 7, OrderStatusPending, true, nil)

	cancelled, err := svc.CancelOrder(context.Background(), 7, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)
}

func TestCancelOrderGuards(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	shipped := seedOrder(t, db, 7, OrderStatusShipped, true, nil)
	_, err := svc.CancelOrder(context.Background(), 7, shipped.ID)
	require.ErrorIs(t, err, ErrCancellationNotAllowed)

	// Other users' orders are invisible, not forbidden.
	pending := seedOrder(t, db, 7, OrderStatusPending, false, nil)
	_, err = svc.CancelOrder(context.Background(), 8, pending.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDeleteOrderHardDeletes(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	p := seedProduct(t, db, 5)
	o := seedOrder(t, db, 7, OrderStatusPending, false, []OrderItem{
		{ProductID: p.ID, SKU: p.SKU, Name: p.Name, Quantity: 1, Price: p.Price},
	})

	require.NoError(t, svc.DeleteOrder(7, o.ID))

	var count int64
	db.Model(&Order{}).Where("id = ?", o.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&OrderItem{}).Where("order_id = ?", o.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&StatusHistory{}).Where("order_id = ?", o.ID).Count(&count)
	assert.Zero(t, count)
}

func TestDeleteOrderGuards(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	delivered := seedOrder(t, db, 7, OrderStatusDelivered, true, nil)
	require.ErrorIs(t, svc.DeleteOrder(7, delivered.ID), ErrDeletionNotAllowed)

	var count int64
	db.Model(&Order{}).Where("id = ?", delivered.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	o := seedOrder(t, db, 7, OrderStatusPending, false, nil)

	first, applied, err := svc.MarkPaid(context.Background(), o.OrderNumber, "webhook")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, first.IsPaid())
	firstDate := *first.PaymentDate

	second, applied, err := svc.MarkPaid(context.Background(), o.OrderNumber, "webhook")
	require.NoError(t, err)
	assert.False(t, applied)
	require.NotNil(t, second.PaymentDate)
	assert.True(t, firstDate.Equal(*second.PaymentDate), "payment date must not move on replay")
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	_, _, err := svc.MarkPaid(context.Background(), "ORD-20260831-FFFFFF", "webhook")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrdersScopedToUser(t *testing.T) {
	db := testDB(t)
	svc := testService(t, db, nil)

	seedOrder(t, db, 1, OrderStatusPending, false, nil)
	seedOrder(t, db, 1, OrderStatusPending, false, nil)
	seedOrder(t, db, 2, OrderStatusPending, false, nil)

	mine, err := svc.GetOrders(1, 1, 20)
	require.NoError(t, err)
	assert.Len(t, mine.Orders, 2)
	assert.Equal(t, int64(2), mine.Pagination.Total)

	all, err := svc.GetAllOrders(1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Pagination.Total)
}
