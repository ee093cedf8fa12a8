// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/cart"
	"github.com/your-org/jewelry-storefront/internal/interfaces/http/middleware"
)

// CartHandler handles cart endpoints for both guests and signed-in users.
type CartHandler struct {
	cartService *cart.Service
	config      *config.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, cfg *config.Config) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		config:      cfg,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	summary, err := h.cart(c).Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve cart",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    summary,
	})
}

// AddToCart handles POST /cart/items. When the requested quantity exceeds the
// current stock the line is stored clamped and a warning is returned instead
// of an error.
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	stored, err := h.cart(c).Add(c.Request.Context(), req.ProductID, req.Quantity, req.Override)
	if err != nil {
		if errors.Is(err, cart.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	response := gin.H{
		"message": "Item added to cart successfully",
		"data": gin.H{
			"product_id": req.ProductID,
			"quantity":   stored,
		},
	}
	if stored < req.Quantity {
		response["warning"] = fmt.Sprintf("Only %d available in stock.", stored)
	}

	c.JSON(http.StatusOK, response)
}

// UpdateCartItem handles PUT /cart/items/:id. A quantity of zero removes the
// line.
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return
	}

	var req cart.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	stored, err := h.cart(c).Add(c.Request.Context(), uint(productID), req.Quantity, true)
	if err != nil {
		if errors.Is(err, cart.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	response := gin.H{
		"message": "Cart item updated successfully",
		"data": gin.H{
			"product_id": productID,
			"quantity":   stored,
		},
	}
	if stored < req.Quantity {
		response["warning"] = fmt.Sprintf("Only %d available in stock.", stored)
	}

	c.JSON(http.StatusOK, response)
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return
	}

	if err := h.cart(c).Remove(c.Request.Context(), uint(productID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to remove cart item",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cart(c).Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to clear cart",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// cart picks the durable or session variant for the current request.
func (h *CartHandler) cart(c *gin.Context) cart.Cart {
	var uid *uint
	if id, ok := middleware.GetUserIDFromContext(c); ok {
		uid = &id
	}
	return h.cartService.Cart(uid, h.getOrCreateSessionID(c))
}

// getOrCreateSessionID gets the session ID from the cookie or creates one
func (h *CartHandler) getOrCreateSessionID(c *gin.Context) string {
	sessionID, err := c.Cookie("session_id")
	if err != nil || sessionID == "" {
		sessionID = uuid.New().String()
		c.SetCookie("session_id", sessionID, 86400, "/", "", false, true)
	}
	return sessionID
}
