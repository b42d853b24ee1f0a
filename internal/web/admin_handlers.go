// internal/web/admin_handlers.go - config refresh and history purge endpoints
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ravenwatch/internal/database"
	"ravenwatch/internal/monitoring"
)

// POST /api/config/refresh - re-apply monitors declared in config
func (s *Server) refreshConfig(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.engine.RefreshConfig(ctx); err != nil {
		logrus.WithError(err).Error("Failed to refresh configuration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Configuration refreshed",
		"timestamp": time.Now(),
	})
}

// DELETE /api/history?older_than=720h - purge old probe records once
func (s *Server) purgeHistory(c *gin.Context) {
	olderThan, err := time.ParseDuration(c.Query("older_than"))
	if err != nil || olderThan <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "older_than must be a positive duration, e.g. 720h"})
		return
	}

	rs, ok := s.store.(database.RetentionStore)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "History backend does not support purging"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	purged, err := monitoring.NewRetentionManager(rs, olderThan).PurgeExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to purge history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purged":    purged,
		"timestamp": time.Now(),
	})
}
