package httpserver

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = deps.CORSOrigins
	corsCfg.AllowCredentials = true
	corsCfg.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	h := &handlers{deps: deps, logger: logger}

	api := router.Group("/api")
	api.Use(rateLimitMiddleware(deps.Redis, deps.RateLimitPerMinute, logger))

	payments := api.Group("/payments")
	{
		// The webhook authenticates by signature, not bearer token.
		payments.POST("/webhook", h.webhook)
		payments.GET("/methods", h.paymentMethods)

		authed := payments.Group("", authRequired(deps.JWTSecret))
		authed.POST("/create-payment-intent", h.createPaymentIntent)
		authed.POST("/confirm-payment", h.confirmPayment)
		authed.GET("/transaction/:id", h.getTransaction)
	}

	orders := api.Group("/orders", authRequired(deps.JWTSecret))
	{
		orders.GET("", h.listOrders)
		orders.GET("/:id", h.getOrder)
		orders.PUT("/:id/status", adminRequired(), h.updateOrderStatus)
		orders.PUT("/:id/payment-status", adminRequired(), h.updatePaymentStatus)
		orders.DELETE("/:id", adminRequired(), h.deleteOrder)
	}

	admin := api.Group("/admin", authRequired(deps.JWTSecret), adminRequired())
	admin.GET("/stats/dashboard", h.orderStats)

	cart := api.Group("/cart", authRequired(deps.JWTSecret))
	{
		cart.GET("", h.getCart)
		cart.POST("/add", h.addToCart)
		cart.DELETE("/:productId", h.removeFromCart)
	}

	return router
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
