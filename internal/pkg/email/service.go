// internal/pkg/email/service.go
package email

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/jewelry-storefront/internal/config"
)

// Service sends transactional email over SMTP. When email is disabled every
// send is a logged no-op, which keeps development environments quiet.
type Service struct {
	config *config.Config
}

// NewService creates a new email service
func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg}
}

// SendOrderConfirmation sends the post-checkout confirmation email.
func (s *Service) SendOrderConfirmation(to string, data *OrderConfirmationData) error {
	var lines strings.Builder
	for _, item := range data.Items {
		lines.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%d</td><td>%s</td><td>%s</td></tr>",
			item.Name, item.Quantity, item.Price, item.Total))
	}

	html := fmt.Sprintf(`
		<h2>Thank you for your order!</h2>
		<p>Your order <strong>%s</strong> was placed on %s.</p>
		<table>
			<tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr>
			%s
		</table>
		<p>Subtotal: %s<br>Tax: %s<br>Shipping: %s<br><strong>Total: %s</strong></p>
		<p>Shipping to:<br>%s</p>`,
		data.OrderNumber, data.OrderDate, lines.String(),
		data.Subtotal, data.Tax, data.ShippingCost, data.Total,
		data.ShippingAddress)

	return s.send(&Email{
		To:          []string{to},
		Subject:     fmt.Sprintf("Order confirmation - %s", data.OrderNumber),
		HTMLContent: html,
		Type:        EmailTypeOrderConfirmation,
	})
}

// SendOrderCancellation sends the cancellation notice.
func (s *Service) SendOrderCancellation(to, orderNumber, total string) error {
	html := fmt.Sprintf(`
		<h2>Your order has been cancelled</h2>
		<p>Order <strong>%s</strong> (total %s) has been cancelled.
		If the order was already paid, the refund is on its way.</p>`,
		orderNumber, total)

	return s.send(&Email{
		To:          []string{to},
		Subject:     fmt.Sprintf("Order cancelled - %s", orderNumber),
		HTMLContent: html,
		Type:        EmailTypeOrderCancellation,
	})
}

func (s *Service) send(email *Email) error {
	if !s.config.Email.Enabled {
		logrus.WithFields(logrus.Fields{
			"type":    email.Type,
			"to":      email.To,
			"subject": email.Subject,
		}).Debug("Email sending disabled, skipping")
		return nil
	}
	return s.sendSMTP(email)
}
