// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"gorm.io/gorm"
)

const sessionCartTTL = 24 * time.Hour

// Service owns both cart variants and hands out the right one for a caller.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
	Override  bool `json:"override"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// Cart returns the durable cart for authenticated callers and the session
// cart otherwise.
func (s *Service) Cart(userID *uint, sessionID string) Cart {
	if userID != nil {
		return &userCart{svc: s, userID: *userID}
	}
	return &sessionCart{svc: s, sessionID: sessionID}
}

// MergeSessionCart folds an anonymous session cart into the user's durable
// cart at login, then discards the session cart. Quantities are summed and
// clamped to stock like any other add.
func (s *Service) MergeSessionCart(ctx context.Context, userID uint, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sc, err := s.loadSessionCart(ctx, sessionID)
	if err != nil || len(sc.Items) == 0 {
		return err
	}

	dst := s.Cart(&userID, "")
	for _, item := range sc.Items {
		if _, err := dst.Add(ctx, item.ProductID, item.Quantity, false); err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return fmt.Errorf("failed to merge cart line for product %d: %w", item.ProductID, err)
		}
	}

	return s.Cart(nil, sessionID).Clear(ctx)
}

// purchasableProduct loads a product that can be added to a cart.
func (s *Service) purchasableProduct(productID uint) (*product.Product, error) {
	var prod product.Product
	err := s.db.Where("id = ? AND available = ?", productID, true).First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &prod, nil
}

func sessionCartKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

func (s *Service) loadSessionCart(ctx context.Context, sessionID string) (*SessionCart, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	data, err := s.redisClient.Get(ctx, sessionCartKey(sessionID)).Result()
	if err == redis.Nil {
		now := time.Now().UTC()
		return &SessionCart{
			SessionID: sessionID,
			Items:     []SessionCartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session cart: %w", err)
	}

	var sc SessionCart
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return nil, fmt.Errorf("failed to decode session cart: %w", err)
	}
	return &sc, nil
}

func (s *Service) saveSessionCart(ctx context.Context, sessionID string, sc *SessionCart) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode session cart: %w", err)
	}
	err = s.redisClient.Set(ctx, sessionCartKey(sessionID), data, sessionCartTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to store session cart: %w", err)
	}
	return nil
}
