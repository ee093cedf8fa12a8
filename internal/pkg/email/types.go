// internal/pkg/email/types.go
package email

// EmailType represents the type of email being sent
type EmailType string

const (
	EmailTypeWelcome           EmailType = "welcome"
	EmailTypeOrderConfirmation EmailType = "order_confirmation"
	EmailTypeOrderCancellation EmailType = "order_cancellation"
)

// Email represents an email message
type Email struct {
	To          []string  `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"html_content"`
	TextContent string    `json:"text_content,omitempty"`
	Type        EmailType `json:"type"`
}

// OrderConfirmationData contains data for the order confirmation email
type OrderConfirmationData struct {
	OrderNumber     string             `json:"order_number"`
	OrderDate       string             `json:"order_date"`
	Subtotal        string             `json:"subtotal"`
	Tax             string             `json:"tax"`
	ShippingCost    string             `json:"shipping_cost"`
	Total           string             `json:"total"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []ConfirmationItem `json:"items"`
}

// ConfirmationItem is one order line in a confirmation email
type ConfirmationItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Total    string `json:"total"`
}
