// internal/domain/order/entity.go
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentMethod represents how an order is paid
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ValidPaymentMethod reports whether the value is one of the enumerated
// payment methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// statusTransitions is the full order state machine. Terminal states have no
// outgoing transitions.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// Order represents the order entity. Orders are hard-deleted only while
// still cancellable, so there is no soft-delete column.
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	Status        OrderStatus   `gorm:"not null;default:'pending';size:20" json:"status"`
	PaymentStatus bool          `gorm:"not null;default:false" json:"payment_status"`
	PaymentDate   *time.Time    `json:"payment_date"`
	PaymentMethod PaymentMethod `gorm:"not null;size:20" json:"payment_method"`

	// Financial fields, all in currency units. Total is derived and is
	// recomputed on every save.
	Subtotal     decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"subtotal"`
	Tax          decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"tax"`
	ShippingCost decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"shipping_cost"`
	Total        decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"total"`

	ShippingAddress string `gorm:"type:text;not null" json:"shipping_address"`
	BillingAddress  string `gorm:"type:text" json:"billing_address"`
	TrackingNumber  string `gorm:"size:100" json:"tracking_number"`
	Notes           string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []StatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem captures one ordered product at the unit price in effect when
// the order was placed. The price is never recalculated afterwards.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	SKU       string          `gorm:"not null;size:100" json:"sku"`
	Name      string          `gorm:"not null;size:255" json:"name"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusHistory tracks order status changes
type StatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"not null;size:20" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment"`
	CreatedBy uint        `gorm:"index" json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string         { return "orders" }
func (OrderItem) TableName() string     { return "order_items" }
func (StatusHistory) TableName() string { return "order_status_history" }

// GenerateOrderNumber builds a customer-facing order identifier of the form
// ORD-YYYYMMDD-XXXXXX, where the suffix is six uppercase hex characters.
func GenerateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// BeforeCreate assigns the order number when none was set.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber()
	}
	return nil
}

// BeforeSave keeps the total consistent with its parts on every write.
func (o *Order) BeforeSave(tx *gorm.DB) error {
	o.Total = o.Subtotal.Add(o.Tax).Add(o.ShippingCost).Round(2)
	return nil
}

// IsPaid reports whether payment fully applied. Both fields are checked so a
// partially-applied update never counts as paid.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus && o.PaymentDate != nil
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, s := range statusTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// CanBeCancelled checks if order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// CanBeDeleted mirrors the cancellation guard for hard deletion.
func (o *Order) CanBeDeleted() bool {
	return o.CanBeCancelled()
}

// ItemTotal returns quantity times unit price for one line.
func (i *OrderItem) ItemTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
