package subscription

import (
	"context"
	"net/http"
	"time"

	"chathub-presence-svc/src/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxTargetsPerCall = 1000

type Handler interface {
	Subscribe(c *gin.Context)
	Unsubscribe(c *gin.Context)
	ListSubscriptions(c *gin.Context)
}

type handler struct {
	config *config.Configuration
	graph  Graph
}

func NewHandler(cfg *config.Configuration, graph Graph) Handler {
	return &handler{config: cfg, graph: graph}
}

type edgeRequest struct {
	TargetIDs []string `json:"targetIds" binding:"required"`
}

// Subscribe is also the periodic resync call: clients re-send their full
// target list to refresh the TTL on both indexes.
func (h *handler) Subscribe(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	subscriberID := c.GetString("user_id")

	var req edgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.TargetIDs) > maxTargetsPerCall {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many targets"})
		return
	}

	if err := h.graph.Subscribe(ctx, subscriberID, req.TargetIDs); err != nil {
		logrus.WithError(err).WithField("subscriber", subscriberID).Error("Subscribe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to update subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "subscribed": len(req.TargetIDs)})
}

func (h *handler) Unsubscribe(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	subscriberID := c.GetString("user_id")

	var req edgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.graph.Unsubscribe(ctx, subscriberID, req.TargetIDs); err != nil {
		logrus.WithError(err).WithField("subscriber", subscriberID).Error("Unsubscribe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to update subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) ListSubscriptions(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	subscriberID := c.GetString("user_id")

	targets, err := h.graph.SubscriptionsOf(ctx, subscriberID)
	if err != nil {
		logrus.WithError(err).WithField("subscriber", subscriberID).Error("ListSubscriptions failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "targetIds": targets})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
