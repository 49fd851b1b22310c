package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/middleware"
)

// serviceName — имя сервиса в метриках и трассировке.
const serviceName = "payment"

// ReadinessChecker — проверка готовности зависимостей.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — зависимости роутера. Middleware со значением nil не подключаются.
type RouterConfig struct {
	Orders       OrderService
	Confirmation ConfirmationService
	Refunds      RefundService
	Ledger       LedgerService
	Users        UserService

	AuthMW      *middleware.AuthMiddleware
	RateLimitMW *middleware.RateLimitMiddleware
	TracingMW   *middleware.TracingMiddleware
	CORS        *middleware.CORSConfig

	MaxWebhookBody int64
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// Router — HTTP роутер сервиса.
type Router struct {
	engine *gin.Engine
	cfg    RouterConfig
}

// NewRouter создаёт и настраивает роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := middleware.DefaultCORSConfig()
	if cfg.CORS != nil {
		corsCfg = *cfg.CORS
	}
	engine.Use(middleware.CORS(corsCfg))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(metrics.GinMetricsMiddleware(serviceName))

	r := &Router{engine: engine, cfg: cfg}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	if r.cfg.TracingMW != nil {
		r.engine.Use(r.cfg.TracingMW.Handle())
	}

	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	v1 := r.engine.Group("/api/v1")

	// Webhook шлюза: без auth и rate limit, доставки идут с общих IP шлюза.
	webhook := NewWebhookHandler(r.cfg.Confirmation, r.cfg.MaxWebhookBody)
	v1.POST("/payments/webhook", webhook.Handle)

	protected := v1.Group("")
	if r.cfg.RateLimitMW != nil {
		protected.Use(r.cfg.RateLimitMW.Handle())
	}
	if r.cfg.AuthMW != nil {
		protected.Use(r.cfg.AuthMW.Handle())
	}

	payments := NewPaymentHandler(r.cfg.Orders, r.cfg.Confirmation, r.cfg.Ledger)
	admin := NewAdminHandler(r.cfg.Refunds, r.cfg.Ledger, r.cfg.Users)

	p := protected.Group("/payments")
	{
		p.POST("/orders", payments.CreateOrder)
		p.POST("/verify", payments.Verify)
		p.GET("/me", payments.MyPayments)

		p.POST("/refund", admin.Refund)
		p.POST("/backfill", admin.Backfill)
		p.GET("", admin.ListPayments)
	}

	protected.DELETE("/admin/users/:id", admin.DeleteUser)
}

// Engine возвращает gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.cfg.ReadinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.cfg.ReadinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
