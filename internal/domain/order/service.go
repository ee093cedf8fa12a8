// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"github.com/your-org/jewelry-storefront/internal/domain/user"
	"github.com/your-org/jewelry-storefront/internal/pkg/email"
	"github.com/your-org/jewelry-storefront/internal/pkg/metrics"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when an order does not exist or does not
	// belong to the caller.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition is returned for a status change the state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCancellationNotAllowed is returned when cancelling an order that
	// is already shipped, delivered or cancelled.
	ErrCancellationNotAllowed = errors.New("order can no longer be cancelled")

	// ErrDeletionNotAllowed mirrors the cancellation guard for hard deletes.
	ErrDeletionNotAllowed = errors.New("order can no longer be deleted")
)

// RefundGateway is the slice of the payment gateway the order state machine
// needs for cancellations.
type RefundGateway interface {
	ListIntents(ctx context.Context, metadataFilter map[string]string) ([]payment.Intent, error)
	CreateRefund(ctx context.Context, intentID, reason string) (*payment.Refund, error)
}

// Service handles order lifecycle business logic
type Service struct {
	db           *gorm.DB
	config       *config.Config
	gateway      RefundGateway
	emailService *email.Service
	metrics      metrics.Recorder
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, gateway RefundGateway, emailService *email.Service, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Service{
		db:           db,
		config:       cfg,
		gateway:      gateway,
		emailService: emailService,
		metrics:      recorder,
	}
}

// UpdateStatusRequest represents an admin status update
type UpdateStatusRequest struct {
	Status         OrderStatus `json:"status" binding:"required"`
	TrackingNumber string      `json:"tracking_number"`
	Comment        string      `json:"comment"`
}

// OrderListResponse represents a page of orders
type OrderListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// GetOrders returns the caller's orders, newest first.
func (s *Service) GetOrders(userID uint, page, limit int) (*OrderListResponse, error) {
	return s.listOrders(s.db.Where("user_id = ?", userID), page, limit)
}

// GetAllOrders returns every order, for admin use.
func (s *Service) GetAllOrders(page, limit int) (*OrderListResponse, error) {
	return s.listOrders(s.db, page, limit)
}

func (s *Service) listOrders(query *gorm.DB, page, limit int) (*OrderListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := query.Model(&Order{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := query.Model(&Order{}).Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &OrderListResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// GetOrder returns one of the caller's orders.
func (s *Service) GetOrder(userID, orderID uint) (*Order, error) {
	var o Order
	err := s.db.Preload("Items").Preload("StatusHistory").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &o, nil
}

// GetOrderByNumber returns an order by its customer-facing number.
func (s *Service) GetOrderByNumber(orderNumber string) (*Order, error) {
	var o Order
	err := s.db.Preload("Items").Where("order_number = ?", orderNumber).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &o, nil
}

// UpdateStatus moves an order through the state machine. Entering processing
// decrements stock for every item, exactly once per transition; saving an
// order that is already in the requested status does not re-apply side
// effects.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, req *UpdateStatusRequest, actorID uint) (*Order, error) {
	var updated Order
	var wasPaid bool
	var transitioned bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.Preload("Items").First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to fetch order: %w", err)
		}
		wasPaid = o.IsPaid()

		if req.TrackingNumber != "" {
			o.TrackingNumber = req.TrackingNumber
		}

		if o.Status == req.Status {
			if err := tx.Save(&o).Error; err != nil {
				return fmt.Errorf("failed to save order: %w", err)
			}
			updated = o
			return nil
		}

		if !o.CanTransitionTo(req.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, req.Status)
		}

		if req.Status == OrderStatusProcessing {
			if err := decrementStock(tx, o.Items); err != nil {
				return err
			}
		}

		o.Status = req.Status
		if err := tx.Save(&o).Error; err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		history := StatusHistory{
			OrderID:   o.ID,
			Status:    req.Status,
			Comment:   req.Comment,
			CreatedBy: actorID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}

		updated = o
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned && updated.Status == OrderStatusCancelled {
		s.afterCancellation(ctx, &updated, wasPaid)
	}
	return &updated, nil
}

// CancelOrder cancels one of the caller's orders. Refunds and notifications
// are best-effort and never fail the cancellation.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uint) (*Order, error) {
	var cancelled Order
	var wasPaid bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var o Order
		err := tx.Preload("Items").
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&o).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to fetch order: %w", err)
		}

		if !o.CanBeCancelled() {
			return ErrCancellationNotAllowed
		}
		wasPaid = o.IsPaid()

		o.Status = OrderStatusCancelled
		if err := tx.Save(&o).Error; err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		history := StatusHistory{
			OrderID:   o.ID,
			Status:    OrderStatusCancelled,
			Comment:   "cancelled by customer",
			CreatedBy: userID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}

		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCancellation(ctx, &cancelled, wasPaid)
	return &cancelled, nil
}

// DeleteOrder hard-deletes one of the caller's orders. Only orders that
// could still be cancelled may be deleted.
func (s *Service) DeleteOrder(userID, orderID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var o Order
		err := tx.Where("id = ? AND user_id = ?", orderID, userID).First(&o).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to fetch order: %w", err)
		}

		if !o.CanBeDeleted() {
			return ErrDeletionNotAllowed
		}

		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&StatusHistory{}).Error; err != nil {
			return fmt.Errorf("failed to delete order history: %w", err)
		}
		if err := tx.Delete(&o).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
}

// MarkPaid applies a payment confirmation to the order with the given
// number. Re-applying to an already-paid order changes nothing and keeps the
// original payment date.
func (s *Service) MarkPaid(ctx context.Context, orderNumber, source string) (*Order, bool, error) {
	o, err := s.GetOrderByNumber(orderNumber)
	if err != nil {
		return nil, false, err
	}

	if o.IsPaid() {
		return o, false, nil
	}

	now := time.Now().UTC()
	o.PaymentStatus = true
	o.PaymentDate = &now
	if err := s.db.Save(o).Error; err != nil {
		return nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	s.metrics.OrderPaid(ctx, source)
	return o, true, nil
}

// afterCancellation runs the best-effort cancellation side effects outside
// the transaction.
func (s *Service) afterCancellation(ctx context.Context, o *Order, wasPaid bool) {
	s.metrics.OrderCancelled(ctx)

	if wasPaid {
		s.refundPayments(ctx, o)
	}
	s.sendCancellationEmail(o)
}

// refundPayments refunds every payment intent tagged with the order number.
// Gateway failures are logged, never fatal.
func (s *Service) refundPayments(ctx context.Context, o *Order) {
	if s.gateway == nil {
		return
	}

	intents, err := s.gateway.ListIntents(ctx, map[string]string{"order_number": o.OrderNumber})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"error":        err.Error(),
		}).Error("Failed to list payment intents for refund")
		return
	}

	for _, intent := range intents {
		if _, err := s.gateway.CreateRefund(ctx, intent.ID, "requested_by_customer"); err != nil {
			logrus.WithFields(logrus.Fields{
				"order_number": o.OrderNumber,
				"intent_id":    intent.ID,
				"error":        err.Error(),
			}).Error("Failed to refund payment intent")
		}
	}
}

func (s *Service) sendCancellationEmail(o *Order) {
	if s.emailService == nil {
		return
	}

	var u user.User
	if err := s.db.First(&u, o.UserID).Error; err != nil {
		logrus.WithField("order_number", o.OrderNumber).Warn("No user found for cancellation email")
		return
	}

	if err := s.emailService.SendOrderCancellation(u.Email, o.OrderNumber, o.Total.StringFixed(2)); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"error":        err.Error(),
		}).Warn("Failed to send cancellation email")
	}
}

// decrementStock applies the atomic stock delta for every order item.
func decrementStock(tx *gorm.DB, items []OrderItem) error {
	for _, item := range items {
		err := tx.Model(&product.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}
