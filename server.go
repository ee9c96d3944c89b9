package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/middlewares"
	"github.com/myjantes/atelier_backend/models"
	"github.com/myjantes/atelier_backend/push"
	"github.com/myjantes/atelier_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, relying on process environment")
	}

	logger := config.GetLogger()

	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	if os.Getenv("GO_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := push.NewHub(logger)

	r := gin.New()
	r.Use(readinessGate())
	r.Use(corsMiddleware())
	r.Use(rateLimiter(logger))
	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r, hub)

	// Bind before the slow dependency dials so the platform health checker
	// sees the port open; readinessGate returns 503 until the stores are up.
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind port " + port)
	}
	srv := &http.Server{Handler: r}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening on http://localhost:" + port)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if os.Getenv("SKIP_MIGRATIONS") != "true" {
		models.MigrateTable()
	}

	applySessionIsolation(logger)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcher := workflow.NewNotificationDispatcher(config.GetDB(), logger, hub)
	go dispatcher.Run(dispatcherCtx)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrCh:
		logger.WithError(err).Error("http server failed")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	stopDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}

	if redisClient := config.GetRedisDB(); redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("closing redis connection")
		}
	}
	logger.Info("server stopped")
}

func registerRoutes(r *gin.Engine, hub *push.Hub) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	api.POST("/auth/login", loginHandler())
	api.POST("/auth/register", registerHandler())
	api.GET("/services", listServicesHandler())

	authed := api.Group("")
	authed.Use(middlewares.RequireAuth())
	{
		authed.GET("/me", currentUserHandler())
		authed.GET("/notifications", listNotificationsHandler())

		authed.POST("/quotes", createQuoteHandler())
		authed.GET("/quotes", listQuotesHandler())
		authed.GET("/quotes/:id", getQuoteHandler())
		authed.GET("/line-items/:id", getLineItemHandler())
		authed.GET("/quotes/:id/items", listLineItemsHandler(models.ParentTypeQuote))
		authed.GET("/quotes/:id/media", listMediaHandler(models.ParentTypeQuote))

		authed.POST("/invoices", createInvoiceHandler())
		authed.GET("/invoices", listInvoicesHandler())
		authed.GET("/invoices/:id", getInvoiceHandler())
		authed.GET("/invoices/:id/items", listLineItemsHandler(models.ParentTypeInvoice))
		authed.GET("/invoices/:id/media", listMediaHandler(models.ParentTypeInvoice))

		authed.POST("/reservations", createReservationHandler())
		authed.GET("/reservations", listReservationsHandler())
		authed.GET("/reservations/:id", getReservationHandler())

		authed.POST("/uploads/sign", signUploadHandler())
		authed.POST("/uploads/complete", completeUploadHandler())
	}

	admin := api.Group("")
	admin.Use(middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.GET("/admin/services", adminListServicesHandler())
		admin.POST("/services", createServiceHandler())
		admin.PUT("/services/:id", updateServiceHandler())
		admin.PUT("/services/:id/active", toggleServiceHandler())
		admin.DELETE("/services/:id", deleteServiceHandler())

		admin.PUT("/quotes/:id", updateQuoteHandler())
		admin.PUT("/quotes/:id/status", updateQuoteStatusHandler())
		admin.DELETE("/quotes/:id", deleteQuoteHandler())
		admin.POST("/quotes/:id/items", createLineItemHandler(models.ParentTypeQuote))

		admin.PUT("/invoices/:id", updateInvoiceHandler())
		admin.PUT("/invoices/:id/status", updateInvoiceStatusHandler())
		admin.DELETE("/invoices/:id", deleteInvoiceHandler())
		admin.POST("/invoices/:id/items", createLineItemHandler(models.ParentTypeInvoice))

		admin.PUT("/line-items/:id", updateLineItemHandler())
		admin.DELETE("/line-items/:id", deleteLineItemHandler())
		admin.DELETE("/media/:id", deleteMediaHandler())

		admin.PUT("/reservations/:id/status", updateReservationStatusHandler())
		admin.DELETE("/reservations/:id", deleteReservationHandler())

		admin.GET("/users", listUsersHandler())
		admin.POST("/users", createUserHandler())
		admin.PUT("/users/:id", updateUserHandler())

		admin.GET("/counters/:paymentType", getInvoiceCounterHandler())
	}

	r.GET("/media/object", mediaObjectHandler())
	r.GET("/ws", websocketHandler(hub))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}

// readinessGate answers 503 until the stores are connected. /healthz is
// always allowed so liveness probes keep passing during startup.
func readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "starting up"})
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Correlation-Id")
	corsConfig.ExposeHeaders = append(corsConfig.ExposeHeaders, "X-Correlation-Id")

	allowed := splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
	switch {
	case len(allowed) > 0:
		corsConfig.AllowOrigins = allowed
	case os.Getenv("GO_ENV") == "production":
		// no configured origins in production means browser clients are
		// not expected; deny cross-origin by default
		corsConfig.AllowOrigins = []string{}
	default:
		corsConfig.AllowAllOrigins = true
	}
	return cors.New(corsConfig)
}

// rateLimiter is a fixed-window counter in redis, keyed per client IP.
// Disabled unless RATE_LIMIT_ENABLED=true; fails open when redis is down.
func rateLimiter(logger *logrus.Logger) gin.HandlerFunc {
	if os.Getenv("RATE_LIMIT_ENABLED") != "true" {
		return func(c *gin.Context) { c.Next() }
	}

	maxRequests := int64(100)
	if v, err := strconv.ParseInt(os.Getenv("RATE_LIMIT_MAX_REQUESTS"), 10, 64); err == nil && v > 0 {
		maxRequests = v
	}
	window := 60 * time.Second
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); err == nil && v > 0 {
		window = time.Duration(v) * time.Second
	}

	return func(c *gin.Context) {
		redisClient := config.GetRedisDB()
		if redisClient == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP()
		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(ctx, key, window)
		}
		if count > maxRequests {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"status":  status,
				"method":  c.Request.Method,
				"path":    c.Request.URL.Path,
				"elapsed": time.Since(start).String(),
				"errors":  c.Errors.String(),
			}).Error("request failed")
		}
	}
}

// applySessionIsolation pins the pooled connections to READ COMMITTED so
// concurrent counter reads do not gap-lock each other.
func applySessionIsolation(logger *logrus.Logger) {
	db := config.GetDB()
	if db == nil {
		return
	}
	for attempt := 1; attempt <= 3; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			return
		}
		logger.WithError(err).Warn("setting session isolation level, retrying")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
