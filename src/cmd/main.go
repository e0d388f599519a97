package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"chathub-presence-svc/src/clients"
	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/dependency"
	"chathub-presence-svc/src/internal/logger"
	"chathub-presence-svc/src/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

func main() {
	cfg := config.Load()
	logger.Init(cfg)

	log.Infof("Application %s is starting....", cfg.App.Name)

	mongodb, err := clients.NewMongoDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}

	redisClient, err := clients.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	rabbitMQ, err := clients.NewRabbitMQ(&cfg.Queue)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	if err := rabbitMQ.SetupExchange(); err != nil {
		log.WithError(err).Fatal("Failed to declare realtime exchange")
	}

	gin.SetMode(cfg.Server.Mode)
	deps := dependency.NewDependencyManager(gin.New(), mongodb, redisClient, rabbitMQ, cfg)
	deps.Router.Use(gin.Recovery())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Expiration reactor: turns expired liveness markers into offline flows.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := deps.Reactor.Run(ctx); err != nil {
			log.WithError(err).Error("Expiration reactor exited with error")
		}
	}()

	// Status broadcaster: the bus's single logical consumer group.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := deps.Consumer.Run(ctx); err != nil {
			log.WithError(err).Error("Status event consumer exited with error")
		}
	}()

	if err := server.Start(ctx, deps); err != nil {
		log.WithError(err).Error("HTTP server error")
		stop()
	}

	wg.Wait()

	log.Info("Closing infrastructure connections")
	if err := deps.Consumer.Close(); err != nil {
		log.WithError(err).Warn("Failed to close Kafka reader")
	}
	if err := deps.KafkaWriter.Close(); err != nil {
		log.WithError(err).Warn("Failed to close Kafka writer")
	}
	if err := rabbitMQ.Close(); err != nil {
		log.WithError(err).Warn("Failed to close RabbitMQ")
	}
	if err := redisClient.Close(); err != nil {
		log.WithError(err).Warn("Failed to close Redis")
	}
	if err := mongodb.Close(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to close MongoDB")
	}

	log.Infof("Application %s stopped", cfg.App.Name)
}
