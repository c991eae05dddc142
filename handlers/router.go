package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/middlewares"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with every middleware and route installed.
func NewRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ReadinessMiddleware())
	r.Use(cors.New(corsConfig()))

	// Optional rate limiting. Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		if client := config.GetRedisDB(); client != nil {
			limit := envInt64("RATE_LIMIT_MAX_REQUESTS", 600)
			window := envInt64("RATE_LIMIT_WINDOW_SECONDS", 60)
			r.Use(middlewares.NewRateLimiter(client, limit, time.Duration(window)*time.Second).RateLimitMiddleware)
		} else {
			logger.WithField("field", "rate_limit").Warn("RATE_LIMIT_ENABLED=true but redis is not configured; skipping")
		}
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(middlewares.CustomErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/auth/login", loginHandler())

	api := r.Group("/", middlewares.RequireAuth())
	{
		api.POST("/auth/logout", logoutHandler())
		api.POST("/auth/register", registerHandler())
		api.GET("/users", listUsersHandler())

		api.GET("/produce", listProduceHandler())
		api.POST("/produce", createProduceHandler())

		api.GET("/procurements", listProcurementsHandler())
		api.GET("/procurements/:id", getProcurementHandler())
		api.POST("/procurements", createProcurementHandler())
		api.PUT("/procurements/:id", updateProcurementHandler())
		api.DELETE("/procurements/:id", deleteProcurementHandler())

		api.GET("/sales", listSalesHandler())
		api.GET("/sales/:id", getSaleHandler())
		api.GET("/sales/receipt/:receipt_id", receiptHandler())
		api.POST("/sales", createSaleHandler())
		api.PUT("/sales/:id", updateSaleHandler())
		api.DELETE("/sales/:id", deleteSaleHandler())

		api.GET("/stock", listStockHandler())
		api.GET("/stock/:produce_id", getStockHandler())
		api.PUT("/stock/:produce_id", overrideStockHandler())
		api.GET("/stock/:produce_id/movements", stockMovementsHandler())

		api.GET("/analytics/kpis", kpisHandler())
		api.GET("/analytics/trends", trendsHandler())
		api.GET("/analytics/export", exportAnalyticsHandler())

		api.POST("/internal/ops/reconcile", reconcileHandler())
		api.GET("/internal/ops/reconcile/reports", reconciliationReportsHandler())
	}
	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// corsConfig requires an explicit CORS_ALLOWED_ORIGINS allowlist in production
// and allows all origins elsewhere.
func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			// deny all
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return corsConfig
}

func envInt64(key string, def int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
