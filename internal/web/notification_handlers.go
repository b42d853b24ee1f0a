// internal/web/notification_handlers.go
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TestNotificationRequest represents a test notification request
type TestNotificationRequest struct {
	Message string `json:"message" binding:"required"`
}

// GET /api/notifications/stats
func (s *Server) getNotificationStats(c *gin.Context) {
	if s.notifier == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"enabled": false}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.notifier.GetStats()})
}

// POST /api/notifications/test
func (s *Server) sendTestNotification(c *gin.Context) {
	var req TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notifications are not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.notifier.TestNotification(ctx, req.Message); err != nil {
		logrus.WithError(err).Error("Test notification failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent"})
}
