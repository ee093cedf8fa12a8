// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/jewelry-storefront/internal/config"
	"github.com/your-org/jewelry-storefront/internal/domain/cart"
	"github.com/your-org/jewelry-storefront/internal/domain/checkout"
	"github.com/your-org/jewelry-storefront/internal/domain/order"
	"github.com/your-org/jewelry-storefront/internal/domain/payment"
	"github.com/your-org/jewelry-storefront/internal/domain/product"
	"github.com/your-org/jewelry-storefront/internal/domain/user"
	"github.com/your-org/jewelry-storefront/internal/interfaces/http/handlers"
	"github.com/your-org/jewelry-storefront/internal/interfaces/http/middleware"
	"github.com/your-org/jewelry-storefront/internal/pkg/email"
	"github.com/your-org/jewelry-storefront/internal/pkg/metrics"
	"github.com/your-org/jewelry-storefront/internal/pkg/pdf"
	"gorm.io/gorm"
)

// SetupRoutes wires every API route. The domain services are built once here
// and shared across handlers so they all see the same gateway and metrics
// recorder.
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	recorder, err := metrics.NewRecorder()
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Metrics disabled, falling back to noop recorder")
		recorder = metrics.NewNoopRecorder()
	}

	gateway := payment.NewGateway(cfg)
	emailService := email.NewService(cfg)

	userService := user.NewService(db, cfg)
	productService := product.NewService(db, cfg)
	cartService := cart.NewService(db, redisClient, cfg)
	orderService := order.NewService(db, cfg, gateway, emailService, recorder)
	checkoutService := checkout.NewService(db, cfg, cartService, gateway, emailService, recorder)
	pdfService := pdf.NewService(cfg)

	authHandler := handlers.NewAuthHandler(userService, cartService, cfg)
	profileHandler := handlers.NewUserProfileHandler(userService, cfg)
	productHandler := handlers.NewProductHandler(productService, cfg)
	cartHandler := handlers.NewCartHandler(cartService, cfg)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, cfg)
	orderHandler := handlers.NewOrderHandler(orderService, cfg)
	invoiceHandler := handlers.NewInvoiceHandler(orderService, pdfService, cfg)
	webhookHandler := handlers.NewWebhookHandler(orderService, cfg, recorder)

	// Authentication
	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/logout", authHandler.Logout)
		}
	}

	// User profile
	users := rg.Group("/users")
	users.Use(middleware.AuthMiddleware(cfg))
	{
		users.GET("/profile", profileHandler.GetProfile)
		users.PUT("/profile", profileHandler.UpdateProfile)
		users.PUT("/password", profileHandler.ChangePassword)
	}

	// Product catalogue
	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.GET("/slug/:slug", productHandler.GetProductBySlug)
	}

	// Cart works for guests via the session cookie and for signed-in users
	// via their durable cart.
	cartRoutes := rg.Group("/cart")
	cartRoutes.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cartRoutes.GET("", cartHandler.GetCart)
		cartRoutes.POST("/items", cartHandler.AddToCart)
		cartRoutes.PUT("/items/:id", cartHandler.UpdateCartItem)
		cartRoutes.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cartRoutes.DELETE("", cartHandler.ClearCart)
	}

	// Checkout requires authentication
	checkoutRoutes := rg.Group("/checkout")
	checkoutRoutes.Use(middleware.AuthMiddleware(cfg))
	{
		checkoutRoutes.POST("", checkoutHandler.PlaceOrder)
	}

	// Orders
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.PUT("/:id/cancel", orderHandler.CancelOrder)
		orders.DELETE("/:id", orderHandler.DeleteOrder)
		orders.GET("/:id/invoice", invoiceHandler.GenerateInvoice)
	}

	// Provider webhooks are authenticated by signature, not by JWT.
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/payment", webhookHandler.HandlePaymentWebhook)
	}

	// Admin
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		adminProducts := admin.Group("/products")
		{
			adminProducts.GET("", productHandler.AdminGetProducts)
			adminProducts.POST("", productHandler.AdminCreateProduct)
			adminProducts.PUT("/:id", productHandler.AdminUpdateProduct)
			adminProducts.DELETE("/:id", productHandler.AdminDeleteProduct)
		}

		adminOrders := admin.Group("/orders")
		{
			adminOrders.GET("", orderHandler.AdminGetOrders)
			adminOrders.PUT("/:id/status", orderHandler.AdminUpdateOrderStatus)
		}
	}
}
