package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"
	"chathub-presence-svc/src/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Connect(c *gin.Context)
	Heartbeat(c *gin.Context)
	Disconnect(c *gin.Context)
}

type handler struct {
	config     *config.Configuration
	service    Service
	heartbeats *session.Heartbeats
}

func NewHandler(cfg *config.Configuration, service Service, heartbeats *session.Heartbeats) Handler {
	return &handler{
		config:     cfg,
		service:    service,
		heartbeats: heartbeats,
	}
}

type connectRequest struct {
	SessionID   string `json:"sessionId"`
	DeviceLabel string `json:"deviceLabel"`
}

type heartbeatRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (h *handler) Connect(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sessionID, err := h.service.OnConnect(ctx, userID, req.SessionID, req.DeviceLabel)
	if errors.Is(err, models.ErrSessionIDInvalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Connect failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to register connection",
			"message": "presence backend unavailable, retry",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		"sessionId":                sessionID,
		"heartbeatIntervalSeconds": int(h.heartbeats.Interval() / time.Second),
	})
}

func (h *handler) Heartbeat(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.service.OnHeartbeat(ctx, userID, req.SessionID)
	if errors.Is(err, models.ErrSessionLost) {
		// Not an error: the marker expired, the client must re-register.
		c.JSON(http.StatusGone, gin.H{"error": "session_lost", "message": "re-register the connection"})
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Heartbeat failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to renew heartbeat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) Disconnect(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session id"})
		return
	}

	if err := h.service.OnDisconnect(ctx, userID, sessionID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Disconnect failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to remove connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
