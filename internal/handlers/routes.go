package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"storeapi/internal/database"
	"storeapi/internal/middleware"
	"storeapi/internal/services"
)

type Deps struct {
	Store      database.Store
	Carts      *services.CartService
	Orders     *services.OrderService
	Dashboards *services.DashboardService
	Catalog    *services.CatalogService
	Logger     zerolog.Logger

	JWTSecret          string
	RequestTimeout     time.Duration
	CheckoutRatePerMin int
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Logger), gin.Recovery())
	Register(r, d)
	return r
}

func Register(r *gin.Engine, d Deps) {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkoutLimiter := middleware.NewRateLimiter(d.CheckoutRatePerMin)
	anyRole := middleware.AuthGuard(d.JWTSecret)
	admin := middleware.AdminAuth(d.JWTSecret)

	r.GET("/health", Health(d.Store))
	r.GET("/products", GetProducts(d.Store, d.Catalog, timeout))

	cart := r.Group("/cart")
	cart.Use(middleware.UserAuth(d.JWTSecret))
	{
		cart.GET("", GetCart(d.Carts, timeout))
		cart.POST("", AddCartItem(d.Carts, timeout))
		cart.GET("/summary", GetCartSummary(d.Carts, timeout))
		cart.POST("/delete-many", RemoveCartItems(d.Carts, timeout))
		cart.PATCH("/batch-update", BatchUpdateCartItems(d.Carts, timeout))
		cart.PUT("/:id", UpdateCartItem(d.Carts, timeout))
		cart.DELETE("/:id", RemoveCartItem(d.Carts, timeout))
		cart.PATCH("/:id/selected", SelectCartItem(d.Carts, timeout))
		cart.PATCH("/:id/notes", UpdateCartItemNotes(d.Carts, timeout))
	}

	orders := r.Group("/orders")
	{
		orders.POST("", checkoutLimiter.Limit(), middleware.OptionalAuth(d.JWTSecret), CreateOrder(d.Store, d.Orders, timeout))
		orders.GET("", anyRole, GetOrders(d.Orders, timeout))
		orders.GET("/dashboard", admin, GetDashboard(d.Dashboards, timeout))
		orders.GET("/:id", anyRole, GetOrder(d.Orders, timeout))
		orders.POST("/:id/cancel", anyRole, CancelOrder(d.Orders, timeout))
		orders.PATCH("/:id/status", admin, UpdateOrderStatus(d.Orders, timeout))
		orders.PATCH("/:id/payment", admin, UpdatePaymentStatus(d.Orders, timeout))
		orders.GET("/:id/notes", admin, GetOrderNotes(d.Orders, timeout))
		orders.POST("/:id/notes", admin, AddOrderNote(d.Orders, timeout))
		orders.DELETE("/:id", admin, DeleteOrder(d.Orders, timeout))
		orders.PATCH("/:id/restore", admin, RestoreOrder(d.Orders, timeout))
	}

	r.POST("/payments/verify", admin, VerifyPayment(d.Orders, timeout))

	adminAPI := r.Group("/admin/api")
	adminAPI.Use(admin)
	{
		adminAPI.GET("/products", GetAllProducts(d.Catalog, timeout))
		adminAPI.GET("/products/:id", GetProduct(d.Catalog, timeout))
		adminAPI.POST("/products", CreateProduct(d.Catalog, timeout))
		adminAPI.PUT("/products/:id", UpdateProduct(d.Catalog, timeout))
		adminAPI.DELETE("/products/:id", DeleteProduct(d.Catalog, timeout))
	}
}

func Health(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ensureDBConnection(c.Request.Context(), store); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	}
}
