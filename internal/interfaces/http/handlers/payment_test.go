// internal/interfaces/http/handlers/payment_test.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/order"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&order.Order{}, &order.OrderItem{}, &order.StatusHistory{}))

	cfg := &config.Config{}
	cfg.Payment.WebhookSecret = testWebhookSecret

	orderService := order.NewService(db, cfg, nil, nil, nil)
	handler := NewWebhookHandler(orderService, cfg, nil)

	router := gin.New()
	router.POST("/webhooks/payment", handler.HandlePaymentWebhook)
	return router, db
}

func seedPendingOrder(t *testing.T, db *gorm.DB) *order.Order {
	t.Helper()
	o := order.Order{
		UserID:          1,
		Status:          order.OrderStatusPending,
		PaymentMethod:   order.PaymentMethodCreditCard,
		Subtotal:        decimal.RequireFromString("59.98"),
		Tax:             decimal.RequireFromString("4.80"),
		ShippingCost:    decimal.RequireFromString("5.00"),
		ShippingAddress: "12 Main St, Springfield",
	}
	require.NoError(t, db.Create(&o).Error)
	return &o
}

func intentSucceededPayload(orderNumber string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"order_number":"%s"}}}}`,
		orderNumber))
}

func deliverWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signPayloadHeader(payload []byte) string {
	return payment.ComputeSignature(testWebhookSecret, time.Now().Unix(), payload)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, _ := newWebhookRouter(t)
	payload := intentSucceededPayload("ORD-20260831-A1B2C3")

	w := deliverWebhook(router, payload, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = deliverWebhook(router, payload, "t=1700000000,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	wrongSecret := payment.ComputeSignature("whsec_other", time.Now().Unix(), payload)
	w = deliverWebhook(router, payload, wrongSecret)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	router, _ := newWebhookRouter(t)
	payload := []byte("not json at all")

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookMarksOrderPaid(t *testing.T) {
	router, db := newWebhookRouter(t)
	o := seedPendingOrder(t, db)
	payload := intentSucceededPayload(o.OrderNumber)

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	var got order.Order
	require.NoError(t, db.First(&got, o.ID).Error)
	assert.True(t, got.IsPaid())
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	router, db := newWebhookRouter(t)
	o := seedPendingOrder(t, db)
	payload := intentSucceededPayload(o.OrderNumber)

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	require.Equal(t, http.StatusOK, w.Code)

	var first order.Order
	require.NoError(t, db.First(&first, o.ID).Error)
	require.NotNil(t, first.PaymentDate)
	firstDate := *first.PaymentDate

	w = deliverWebhook(router, payload, signPayloadHeader(payload))
	require.Equal(t, http.StatusOK, w.Code)

	var second order.Order
	require.NoError(t, db.First(&second, o.ID).Error)
	require.NotNil(t, second.PaymentDate)
	assert.True(t, firstDate.Equal(*second.PaymentDate), "payment date must not move on replay")
}

func TestWebhookUnknownOrderAcknowledged(t *testing.T) {
	router, _ := newWebhookRouter(t)
	payload := intentSucceededPayload("ORD-20260831-FFFFFF")

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookMissingOrderNumberAcknowledged(t *testing.T) {
	router, _ := newWebhookRouter(t)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{}}}}`)

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookUnhandledEventTypeAcknowledged(t *testing.T) {
	router, _ := newWebhookRouter(t)
	payload := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)

	w := deliverWebhook(router, payload, signPayloadHeader(payload))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}
