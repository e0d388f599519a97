package query

import (
	"context"
	"net/http"
	"time"

	"chathub-presence-svc/src/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxBatchSize = 500

type Handler interface {
	GetPresence(c *gin.Context)
	BatchPresence(c *gin.Context)
	GetSessions(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{config: cfg, service: service}
}

func (h *handler) GetPresence(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.Param("userId")

	online, err := h.service.IsOnline(ctx, userID)
	if err != nil {
		// Backend trouble degrades to unknown, never to a false offline.
		logrus.WithError(err).WithField("user_id", userID).Warn("Presence read degraded to unknown")
		c.JSON(http.StatusOK, gin.H{"userId": userID, "status": StatusUnknown})
		return
	}

	status := StatusOffline
	if online {
		status = StatusOnline
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "status": status})
}

type batchRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

func (h *handler) BatchPresence(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.UserIDs) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many users in batch"})
		return
	}

	views, err := h.service.BatchPresence(ctx, req.UserIDs)
	if err != nil {
		logrus.WithError(err).WithField("count", len(req.UserIDs)).Error("Batch presence failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to resolve presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "presence": views})
}

// GetSessions lists the caller's own active sessions for device display.
func (h *handler) GetSessions(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.Param("userId")
	if userID != c.GetString("user_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Sessions are visible to their owner only"})
		return
	}

	sessions, err := h.service.ActiveSessions(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Session list failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
