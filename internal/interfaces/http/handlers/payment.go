// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/order"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/pkg/metrics"
)

// WebhookHandler receives payment provider webhooks
type WebhookHandler struct {
	orderService *order.Service
	config       *config.Config
	metrics      metrics.Recorder
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(orderService *order.Service, cfg *config.Config, recorder metrics.Recorder) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &WebhookHandler{
		orderService: orderService,
		config:       cfg,
		metrics:      recorder,
	}
}

// webhookEvent is the provider event envelope. Only the intent metadata is
// ever inspected.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandlePaymentWebhook handles POST /webhooks/payment. A bad signature or an
// unparseable payload is rejected with 400; everything else is acknowledged
// with 200 so the provider does not retry forever.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader("Webhook-Signature")
	if err := payment.VerifySignature(h.config.Payment.WebhookSecret, payload, signature); err != nil {
		logrus.WithField("error", err.Error()).Warn("Rejected webhook with invalid signature")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid webhook signature",
		})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid webhook payload",
		})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		h.handleIntentSucceeded(c, &event)
	default:
		// Unhandled event types are acknowledged without action.
		h.metrics.WebhookEvent(c.Request.Context(), event.Type, false)
		c.JSON(http.StatusOK, gin.H{
			"received": true,
		})
	}
}

func (h *WebhookHandler) handleIntentSucceeded(c *gin.Context, event *webhookEvent) {
	orderNumber := event.Data.Object.Metadata["order_number"]
	if orderNumber == "" {
		logrus.WithField("event_id", event.ID).Warn("Payment webhook without order_number metadata")
		h.metrics.WebhookEvent(c.Request.Context(), event.Type, false)
		c.JSON(http.StatusOK, gin.H{
			"received": true,
		})
		return
	}

	o, applied, err := h.orderService.MarkPaid(c.Request.Context(), orderNumber, "webhook")
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			// Unknown orders are logged and acknowledged; the provider
			// cannot fix this by retrying.
			logrus.WithFields(logrus.Fields{
				"event_id":     event.ID,
				"order_number": orderNumber,
			}).Warn("Payment webhook for unknown order")
			h.metrics.WebhookEvent(c.Request.Context(), event.Type, false)
			c.JSON(http.StatusOK, gin.H{
				"received": true,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process webhook",
		})
		return
	}

	h.metrics.WebhookEvent(c.Request.Context(), event.Type, true)
	logrus.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"applied":      applied,
	}).Info("Payment confirmation processed")

	c.JSON(http.StatusOK, gin.H{
		"received": true,
	})
}
