// internal/web/server.go
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ravenwatch/internal/config"
	"ravenwatch/internal/database"
	"ravenwatch/internal/metrics"
	"ravenwatch/internal/monitoring"
	"ravenwatch/internal/notifications"
)

type Server struct {
	config   *config.Config
	store    database.Store
	engine   *monitoring.Engine
	metrics  *metrics.Collector
	notifier *notifications.NotificationService
	hub      *Hub
	router   *gin.Engine
	server   *http.Server
}

// NewServer wires the HTTP API. notifier may be nil.
func NewServer(cfg *config.Config, store database.Store, engine *monitoring.Engine, metricsCollector *metrics.Collector, hub *Hub, notifier *notifications.NotificationService) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		config:   cfg,
		store:    store,
		engine:   engine,
		metrics:  metricsCollector,
		notifier: notifier,
		hub:      hub,
		router:   router,
	}

	server.setupRoutes()
	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	go s.updateMetricsRoutine(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	if rl := s.config.Server.RateLimit; rl.Enabled {
		api.Use(newRateLimitMiddleware(rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)))
	}
	{
		api.GET("/monitors", s.getMonitors)
		api.GET("/monitors/:id", s.getMonitor)
		api.POST("/monitors", s.createMonitor)
		api.PUT("/monitors/:id", s.updateMonitor)
		api.DELETE("/monitors/:id", s.deleteMonitor)
		api.GET("/monitors/:id/history", s.getMonitorHistory)
		api.POST("/monitors/:id/check", s.checkMonitor)

		api.POST("/cycles", s.runCycle)

		api.GET("/stats", s.getStats)
		api.GET("/health", s.healthCheck)
		api.GET("/build-info", s.getBuildInfo)

		api.POST("/config/refresh", s.refreshConfig)
		api.DELETE("/history", s.purgeHistory)

		api.GET("/notifications/stats", s.getNotificationStats)
		api.POST("/notifications/test", s.sendTestNotification)
	}

	s.router.GET("/ws", s.handleWebSocket)

	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   Version,
	})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.metrics.UpdateSystemMetrics(ctx); err != nil {
				logrus.WithError(err).Error("Failed to update system metrics")
			}
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// newRateLimitMiddleware rejects requests beyond the limiter's budget with 429.
func newRateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
