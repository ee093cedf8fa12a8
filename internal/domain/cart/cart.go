// internal/domain/cart/cart.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound is returned when the referenced product does not
	// exist or is not available for purchase.
	ErrProductNotFound = errors.New("product not found or unavailable")

	// ErrSessionRequired is returned when a session cart is used without a
	// session identifier.
	ErrSessionRequired = errors.New("session ID required for guest cart")
)

// Cart is the single contract both cart variants satisfy. Add returns the
// quantity actually stored, which may be lower than requested because
// quantities are clamped to the product's current stock. Callers compare the
// two to surface a stock warning.
type Cart interface {
	Add(ctx context.Context, productID uint, quantity int, override bool) (int, error)
	Remove(ctx context.Context, productID uint) error
	Clear(ctx context.Context) error
	Get(ctx context.Context) (*Summary, error)
}

// userCart is the durable variant backed by a carts row per user.
type userCart struct {
	svc    *Service
	userID uint
}

// sessionCart is the ephemeral variant backed by a Redis JSON blob.
type sessionCart struct {
	svc       *Service
	sessionID string
}

func (c *userCart) record() (*UserCart, error) {
	var rec UserCart
	err := c.svc.db.Where(UserCart{UserID: c.userID}).FirstOrCreate(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &rec, nil
}

func (c *userCart) Add(ctx context.Context, productID uint, quantity int, override bool) (int, error) {
	prod, err := c.svc.purchasableProduct(productID)
	if err != nil {
		return 0, err
	}

	rec, err := c.record()
	if err != nil {
		return 0, err
	}

	var item CartItem
	result := c.svc.db.Where("cart_id = ? AND product_id = ?", rec.ID, productID).First(&item)
	exists := result.Error == nil
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to load cart item: %w", result.Error)
	}

	target := quantity
	if exists && !override {
		target = item.Quantity + quantity
	}
	stored := prod.ClampQuantity(target)

	if stored <= 0 {
		if exists {
			if err := c.svc.db.Delete(&item).Error; err != nil {
				return 0, fmt.Errorf("failed to remove cart item: %w", err)
			}
		}
		c.touch(rec)
		return 0, nil
	}

	if exists {
		item.Quantity = stored
		item.Price = prod.Price
		if err := c.svc.db.Save(&item).Error; err != nil {
			return 0, fmt.Errorf("failed to update cart item: %w", err)
		}
	} else {
		item = CartItem{
			CartID:    rec.ID,
			ProductID: productID,
			Quantity:  stored,
			Price:     prod.Price,
		}
		if err := c.svc.db.Create(&item).Error; err != nil {
			return 0, fmt.Errorf("failed to create cart item: %w", err)
		}
	}

	c.touch(rec)
	return stored, nil
}

func (c *userCart) Remove(ctx context.Context, productID uint) error {
	rec, err := c.record()
	if err != nil {
		return err
	}
	// Absent lines are a no-op, not an error.
	err = c.svc.db.Where("cart_id = ? AND product_id = ?", rec.ID, productID).
		Delete(&CartItem{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	c.touch(rec)
	return nil
}

func (c *userCart) Clear(ctx context.Context) error {
	rec, err := c.record()
	if err != nil {
		return err
	}
	if err := c.svc.db.Where("cart_id = ?", rec.ID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	c.touch(rec)
	return nil
}

func (c *userCart) Get(ctx context.Context) (*Summary, error) {
	rec, err := c.record()
	if err != nil {
		return nil, err
	}

	var items []CartItem
	if err := c.svc.db.Where("cart_id = ?", rec.ID).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	summary := &Summary{Items: []Line{}, Subtotal: decimal.Zero}
	for _, item := range items {
		var prod product.Product
		err := c.svc.db.Preload("Category").First(&prod, item.ProductID).Error
		if err != nil {
			// Deleted products vanish from the cart view.
			continue
		}
		line := Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Product:   &prod,
			AddedAt:   item.CreatedAt,
		}
		summary.Items = append(summary.Items, line)
		summary.TotalItems += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
	}
	return summary, nil
}

func (c *userCart) touch(rec *UserCart) {
	c.svc.db.Model(rec).Update("updated_at", time.Now().UTC())
}

func (c *sessionCart) Add(ctx context.Context, productID uint, quantity int, override bool) (int, error) {
	prod, err := c.svc.purchasableProduct(productID)
	if err != nil {
		return 0, err
	}

	sc, err := c.svc.loadSessionCart(ctx, c.sessionID)
	if err != nil {
		return 0, err
	}

	idx := -1
	for i := range sc.Items {
		if sc.Items[i].ProductID == productID {
			idx = i
			break
		}
	}

	target := quantity
	if idx >= 0 && !override {
		target = sc.Items[idx].Quantity + quantity
	}
	stored := prod.ClampQuantity(target)

	switch {
	case stored <= 0:
		if idx >= 0 {
			sc.Items = append(sc.Items[:idx], sc.Items[idx+1:]...)
		}
		stored = 0
	case idx >= 0:
		sc.Items[idx].Quantity = stored
		sc.Items[idx].Price = prod.Price
	default:
		sc.Items = append(sc.Items, SessionCartItem{
			ProductID: productID,
			Quantity:  stored,
			Price:     prod.Price,
			AddedAt:   time.Now().UTC(),
		})
	}

	sc.UpdatedAt = time.Now().UTC()
	if err := c.svc.saveSessionCart(ctx, c.sessionID, sc); err != nil {
		return 0, err
	}
	return stored, nil
}

func (c *sessionCart) Remove(ctx context.Context, productID uint) error {
	sc, err := c.svc.loadSessionCart(ctx, c.sessionID)
	if err != nil {
		return err
	}

	for i := range sc.Items {
		if sc.Items[i].ProductID == productID {
			sc.Items = append(sc.Items[:i], sc.Items[i+1:]...)
			sc.UpdatedAt = time.Now().UTC()
			return c.svc.saveSessionCart(ctx, c.sessionID, sc)
		}
	}
	// Absent lines are a no-op.
	return nil
}

func (c *sessionCart) Clear(ctx context.Context) error {
	if c.sessionID == "" {
		return ErrSessionRequired
	}
	if err := c.svc.redisClient.Del(ctx, sessionCartKey(c.sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session cart: %w", err)
	}
	return nil
}

// Get re-joins every line against the live product row. Products that are no
// longer available, or no longer exist, drop out of the totals entirely.
func (c *sessionCart) Get(ctx context.Context) (*Summary, error) {
	sc, err := c.svc.loadSessionCart(ctx, c.sessionID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Items: []Line{}, Subtotal: decimal.Zero}
	for _, item := range sc.Items {
		var prod product.Product
		err := c.svc.db.Preload("Category").
			Where("id = ? AND available = ?", item.ProductID, true).
			First(&prod).Error
		if err != nil {
			continue
		}
		line := Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: prod.Price,
			LineTotal: prod.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Product:   &prod,
			AddedAt:   item.AddedAt,
		}
		summary.Items = append(summary.Items, line)
		summary.TotalItems += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
	}
	return summary, nil
}
