// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/cart"
	"github.com/your-org/jewelry-storefront/internal/domain/order"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"github.com/your-org/jewelry-storefront/internal/domain/user"
	"github.com/your-org/jewelry-storefront/internal/pkg/email"
	"github.com/your-org/jewelry-storefront/internal/pkg/metrics"
	"gorm.io/gorm"
)

// ErrEmptyCart is returned when checkout is attempted with no purchasable
// cart lines. Nothing is mutated in that case.
var ErrEmptyCart = errors.New("cart is empty")

// ValidationError carries per-field messages for a rejected checkout form.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return "checkout validation failed"
}

// PaymentGateway is the slice of the gateway adapter checkout needs.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error)
	Confirm(ctx context.Context, intentID string) (*payment.Intent, error)
}

// Service orchestrates checkout: form validation, totals, order creation,
// payment dispatch and cart clearing, all inside one transaction.
type Service struct {
	db           *gorm.DB
	config       *config.Config
	cartService  *cart.Service
	gateway      PaymentGateway
	emailService *email.Service
	metrics      metrics.Recorder
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, cfg *config.Config, cartService *cart.Service, gateway PaymentGateway, emailService *email.Service, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Service{
		db:           db,
		config:       cfg,
		cartService:  cartService,
		gateway:      gateway,
		emailService: emailService,
		metrics:      recorder,
	}
}

// CheckoutRequest represents the submitted checkout form
type CheckoutRequest struct {
	ShippingAddress string              `json:"shipping_address" form:"shipping_address"`
	BillingOption   string              `json:"billing_option" form:"billing_option"`
	BillingAddress  string              `json:"billing_address" form:"billing_address"`
	PaymentMethod   order.PaymentMethod `json:"payment_method" form:"payment_method"`
	Notes           string              `json:"notes" form:"notes"`
	AgreeTerms      bool                `json:"agree_terms" form:"agree_terms"`
}

// CheckoutResult is returned on successful checkout. ClientSecret is set
// only for the credit card flow, where the payment completes asynchronously.
type CheckoutResult struct {
	Order        *order.Order `json:"order"`
	ClientSecret string       `json:"client_secret,omitempty"`
}

// validate applies the checkout form rules and returns per-field errors.
func validate(req *CheckoutRequest) *ValidationError {
	fields := map[string]string{}

	if req.ShippingAddress == "" {
		fields["shipping_address"] = "Shipping address is required."
	}

	switch req.BillingOption {
	case "", "same":
	case "different":
		if req.BillingAddress == "" {
			fields["billing_address"] = "Billing address is required when billing differs from shipping."
		}
	default:
		fields["billing_option"] = "Billing option must be 'same' or 'different'."
	}

	if !order.ValidPaymentMethod(req.PaymentMethod) {
		fields["payment_method"] = "Payment method must be credit_card, paypal or bank_transfer."
	}

	if !req.AgreeTerms {
		fields["agree_terms"] = "You must agree to the terms to place an order."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// PlaceOrder runs the whole checkout for an authenticated user. Any error
// rolls back the order and items and leaves the cart untouched.
func (s *Service) PlaceOrder(ctx context.Context, userID uint, req *CheckoutRequest) (*CheckoutResult, error) {
	if verr := validate(req); verr != nil {
		s.metrics.CheckoutFailed(ctx, "validation")
		return nil, verr
	}

	userCart := s.cartService.Cart(&userID, "")
	summary, err := userCart.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if summary.Empty() {
		s.metrics.CheckoutFailed(ctx, "empty_cart")
		return nil, ErrEmptyCart
	}

	// The subtotal is snapshotted from the cart now and never recomputed,
	// even though item prices below come from the live product rows.
	subtotal := summary.Subtotal.Round(2)
	tax := subtotal.Mul(s.config.Order.TaxRate).Round(2)
	shipping := s.config.Order.ShippingCost.Round(2)

	billingAddress := ""
	if req.BillingOption == "different" {
		billingAddress = req.BillingAddress
	}

	result := &CheckoutResult{}
	paidImmediately := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		o := order.Order{
			UserID:          userID,
			Status:          order.OrderStatusPending,
			PaymentMethod:   req.PaymentMethod,
			Subtotal:        subtotal,
			Tax:             tax,
			ShippingCost:    shipping,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  billingAddress,
			Notes:           req.Notes,
		}

		// Each item is billed at the product's current price, which
		// reconciles any drift since the line was added to the cart.
		for _, line := range summary.Items {
			var prod product.Product
			if err := tx.First(&prod, line.ProductID).Error; err != nil {
				return fmt.Errorf("product %d no longer exists: %w", line.ProductID, err)
			}
			o.Items = append(o.Items, order.OrderItem{
				ProductID: prod.ID,
				SKU:       prod.SKU,
				Name:      prod.Name,
				Quantity:  line.Quantity,
				Price:     prod.Price,
			})
		}

		if err := tx.Create(&o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		switch req.PaymentMethod {
		case order.PaymentMethodCreditCard:
			intent, err := s.gateway.CreateIntent(ctx, minorUnits(o.Total), s.config.Payment.Currency,
				map[string]string{"order_number": o.OrderNumber})
			if err != nil {
				return err
			}
			result.ClientSecret = intent.ClientSecret

			if s.config.Payment.AutoConfirm {
				if _, err := s.gateway.Confirm(ctx, intent.ID); err != nil {
					return err
				}
			}
		default:
			// Stand-in for the real asynchronous flows: these methods
			// settle at once.
			now := time.Now().UTC()
			o.PaymentStatus = true
			o.PaymentDate = &now
			if err := tx.Save(&o).Error; err != nil {
				return fmt.Errorf("failed to mark order paid: %w", err)
			}
			paidImmediately = true
		}

		history := order.StatusHistory{
			OrderID:   o.ID,
			Status:    order.OrderStatusPending,
			Comment:   "order placed",
			CreatedBy: userID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record order creation: %w", err)
		}

		result.Order = &o
		return nil
	})
	if err != nil {
		var perr *payment.Error
		if errors.As(err, &perr) {
			s.metrics.CheckoutFailed(ctx, "payment_error")
		} else {
			s.metrics.CheckoutFailed(ctx, "internal")
		}
		return nil, err
	}

	s.metrics.OrderCreated(ctx, string(req.PaymentMethod))
	if paidImmediately {
		s.metrics.OrderPaid(ctx, "checkout")
	}

	// The cart is cleared only once the transaction has committed, so a
	// failed checkout always leaves it intact.
	if err := userCart.Clear(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": result.Order.OrderNumber,
			"error":        err.Error(),
		}).Warn("Failed to clear cart after checkout")
	}

	s.sendConfirmationEmail(result.Order)

	return result, nil
}

// sendConfirmationEmail is best-effort and never fails the checkout.
func (s *Service) sendConfirmationEmail(o *order.Order) {
	if s.emailService == nil {
		return
	}

	var u user.User
	if err := s.db.First(&u, o.UserID).Error; err != nil {
		logrus.WithField("order_number", o.OrderNumber).Warn("No user found for confirmation email")
		return
	}

	data := &email.OrderConfirmationData{
		OrderNumber:     o.OrderNumber,
		OrderDate:       o.CreatedAt.Format("January 2, 2006"),
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		PaymentMethod:   string(o.PaymentMethod),
		ShippingAddress: o.ShippingAddress,
	}
	for _, item := range o.Items {
		data.Items = append(data.Items, email.ConfirmationItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
			Total:    item.ItemTotal().StringFixed(2),
		})
	}

	if err := s.emailService.SendOrderConfirmation(u.Email, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"error":        err.Error(),
		}).Warn("Failed to send confirmation email")
	}
}

// minorUnits converts a currency amount to integer minor units (cents).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
