package server

import (
	"time"

	"chathub-presence-svc/src/clients"
	"chathub-presence-svc/src/internal/dependency"
	"chathub-presence-svc/src/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupPresenceRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	mongodb := deps.Mongodb
	redisClient := deps.Redis
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		mongoStatus := "ok"
		if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
			mongoStatus = "error: " + err.Error()
		}

		redisStatus := "ok"
		if err := redisClient.Client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error: " + err.Error()
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"mongodb": getStatus(isMongoConnected(mongodb, c)),
					"redis":   getStatus(isRedisConnected(redisClient.Client, c)),
				},
				"services": gin.H{
					"sessions":      "operational",
					"subscriptions": "operational",
					"broadcast":     "operational",
				},
			},
		})
	})
}

func setupPresenceRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Config.Security.JwtKey)

	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		// Connection lifecycle, called by the realtime gateway
		api.POST("/connections", deps.LifecycleHandler.Connect)
		api.POST("/connections/heartbeat", deps.LifecycleHandler.Heartbeat)
		api.DELETE("/connections/:sessionId", deps.LifecycleHandler.Disconnect)

		// Watch edges
		api.PUT("/subscriptions", deps.SubscriptionHandler.Subscribe)
		api.DELETE("/subscriptions", deps.SubscriptionHandler.Unsubscribe)
		api.GET("/subscriptions", deps.SubscriptionHandler.ListSubscriptions)

		// Presence reads
		api.GET("/presence/:userId", deps.QueryHandler.GetPresence)
		api.POST("/presence/batch", deps.QueryHandler.BatchPresence)
		api.GET("/presence/:userId/sessions", deps.QueryHandler.GetSessions)
	}

	log.Info("Presence routes registered")
}

func isMongoConnected(mongodb *clients.MongoDB, c *gin.Context) bool {
	return mongodb.Client.Ping(c.Request.Context(), nil) == nil
}

func isRedisConnected(redisClient *redis.Client, c *gin.Context) bool {
	return redisClient.Ping(c.Request.Context()).Err() == nil
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
