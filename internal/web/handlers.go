// internal/web/handlers.go - monitor, history and cycle endpoints
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ravenwatch/internal/config"
	"ravenwatch/internal/database"
	"ravenwatch/internal/monitoring"
)

// MonitorRequest is the body for creating or updating a monitor. Derived
// fields cannot be set through the API.
type MonitorRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	ExpectedStatusCode string `json:"expected_status_code"`
	ExpectedLocation   string `json:"expected_location"`
	RequiredSubstring  string `json:"required_substring"`
}

func (r MonitorRequest) validate() error {
	if strings.Contains(r.ID, ":") {
		return errors.New("id must not contain ':'")
	}
	if r.URL != "" && !config.IsValidURL(r.URL) {
		return errors.New("url must be an absolute http or https URL")
	}
	if r.ExpectedStatusCode != "" {
		if code, err := strconv.Atoi(r.ExpectedStatusCode); err != nil || code < 100 || code > 599 {
			return errors.New("expected_status_code must be a number between 100 and 599")
		}
	}
	return nil
}

func (r MonitorRequest) monitor(id string) *database.Monitor {
	return &database.Monitor{
		ID:                 id,
		Name:               r.Name,
		URL:                r.URL,
		ExpectedStatusCode: r.ExpectedStatusCode,
		ExpectedLocation:   r.ExpectedLocation,
		RequiredSubstring:  r.RequiredSubstring,
	}
}

func (s *Server) getMonitors(c *gin.Context) {
	monitors, err := s.store.GetMonitors(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to get monitors")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get monitors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  monitors,
		"count": len(monitors),
	})
}

func (s *Server) getMonitor(c *gin.Context) {
	monitor, err := s.store.GetMonitor(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "Failed to get monitor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": monitor})
}

func (s *Server) createMonitor(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor := req.monitor(req.ID)
	if err := s.store.CreateMonitor(c.Request.Context(), monitor); err != nil {
		logrus.WithError(err).Error("Failed to create monitor")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	logrus.WithField("monitor", monitor.ID).Info("Monitor created")
	s.checkOnSave(monitor)
	c.JSON(http.StatusCreated, gin.H{"data": monitor})
}

func (s *Server) updateMonitor(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor := req.monitor(c.Param("id"))
	if err := s.store.UpdateMonitor(c.Request.Context(), monitor); err != nil {
		s.storeError(c, err, "Failed to update monitor")
		return
	}

	s.checkOnSave(monitor)
	c.JSON(http.StatusOK, gin.H{"data": monitor})
}

func (s *Server) deleteMonitor(c *gin.Context) {
	if err := s.store.DeleteMonitor(c.Request.Context(), c.Param("id")); err != nil {
		s.storeError(c, err, "Failed to delete monitor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Monitor deleted"})
}

// checkOnSave probes a freshly saved monitor in the background.
func (s *Server) checkOnSave(m *database.Monitor) {
	if !s.config.Monitoring.ShouldCheckOnSave() || m.URL == "" {
		return
	}
	id := m.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Probe.Timeout+30*time.Second)
		defer cancel()
		if _, err := s.engine.CheckNow(ctx, id); err != nil && !errors.Is(err, monitoring.ErrMonitorBusy) {
			logrus.WithError(err).WithField("monitor", id).Warn("Check on save failed")
		}
	}()
}

func (s *Server) getMonitorHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetMonitor(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "Failed to get monitor")
		return
	}

	filters := database.HistoryFilters{MonitorID: id, Limit: 100}
	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filters.Since = &since
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filters.Limit = limit
	}

	records, err := s.store.GetProbeHistory(c.Request.Context(), filters)
	if err != nil {
		logrus.WithError(err).WithField("monitor", id).Error("Failed to get probe history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get probe history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
	})
}

func (s *Server) checkMonitor(c *gin.Context) {
	result, err := s.engine.CheckNow(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, monitoring.ErrMonitorBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, monitoring.ErrNoURL):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "check cancelled", "data": result})
	case err != nil:
		s.storeError(c, err, "Failed to check monitor")
	default:
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

func (s *Server) runCycle(c *gin.Context) {
	batch := s.config.Monitoring.BatchSize
	if batchStr := c.Query("batch"); batchStr != "" {
		n, err := strconv.Atoi(batchStr)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch must be a positive integer"})
			return
		}
		batch = n
	}

	report := s.engine.RunCycle(c.Request.Context(), batch)
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	dbStats, err := s.store.GetDatabaseStats(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to get database stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}
	monitors, err := s.store.GetMonitors(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get monitors"})
		return
	}

	states := map[string]int{"healthy": 0, "unhealthy": 0, "unchecked": 0, "no_url": 0}
	for _, m := range monitors {
		switch {
		case m.URL == "":
			states["no_url"]++
		case m.LastState == nil:
			states["unchecked"]++
		case m.LastState.Healthy:
			states["healthy"]++
		default:
			states["unhealthy"]++
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"monitors":      states,
		"database":      dbStats,
		"skipped_ticks": s.engine.SkippedTicks(),
	}})
}

func (s *Server) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, database.ErrMonitorNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		return
	}
	logrus.WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
