package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"shopapi/internal/gateway"
	"shopapi/internal/metrics"
	cartrepo "shopapi/internal/repository/cart"
	productrepo "shopapi/internal/repository/product"
	ordersvc "shopapi/internal/service/order"
	"shopapi/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps carries everything the handlers need, constructed at startup.
type Deps struct {
	OrderSvc    *ordersvc.Service
	Reconciler  *reconcile.Engine
	Gateway     gateway.PaymentGateway
	CartRepo    cartrepo.Repository
	ProductRepo productrepo.Repository
	Metrics     *metrics.Metrics

	JWTSecret     string
	WebhookSecret string

	Redis              *redis.Client
	RateLimitPerMinute int
	CORSOrigins        []string
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	db         *pgxpool.Pool
}

// New builds a Server with all routes wired.
func New(addr string, logger *log.Logger, db *pgxpool.Pool, deps Deps) (*Server, error) {
	router := buildRouter(logger, db, deps)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		logger:     logger,
		db:         db,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(db *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
