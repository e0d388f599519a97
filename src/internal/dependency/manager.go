package dependency

import (
	"chathub-presence-svc/src/clients"
	"chathub-presence-svc/src/internal/broadcast"
	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/debounce"
	"chathub-presence-svc/src/internal/events"
	"chathub-presence-svc/src/internal/expiry"
	"chathub-presence-svc/src/internal/lifecycle"
	"chathub-presence-svc/src/internal/presence"
	"chathub-presence-svc/src/internal/query"
	"chathub-presence-svc/src/internal/realtime"
	"chathub-presence-svc/src/internal/session"
	"chathub-presence-svc/src/internal/settings"
	"chathub-presence-svc/src/internal/subscription"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
)

type Manager struct {
	Router   *gin.Engine
	Config   *config.Configuration
	Mongodb  *clients.MongoDB
	Redis    *clients.RedisClient
	RabbitMQ *clients.RabbitMQ

	KafkaWriter *kafka.Writer
	KafkaReader *kafka.Reader

	SessionStore     session.Store
	Heartbeats       *session.Heartbeats
	Publisher        events.Publisher
	Debounce         *debounce.Coordinator
	Reactor          *expiry.Reactor
	Broadcaster      *broadcast.Broadcaster
	Consumer         *events.Consumer
	Graph            subscription.Graph
	PresenceRepo     presence.Repository
	SettingsRepo     settings.Repository
	QueryService     query.Service
	LifecycleService lifecycle.Service

	LifecycleHandler    lifecycle.Handler
	SubscriptionHandler subscription.Handler
	QueryHandler        query.Handler
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {

	kafkaWriter := clients.NewKafkaWriter(&cfg.Bus)
	kafkaReader := clients.NewKafkaReader(&cfg.Bus)

	sessionStore := session.NewStore(redisClient.Client, &cfg.Presence)
	heartbeats := session.NewHeartbeats(sessionStore, &cfg.Presence)
	publisher := events.NewPublisher(kafkaWriter)

	locks := debounce.NewLocks(redisClient.Client)
	coordinator := debounce.NewCoordinator(locks, sessionStore, publisher, &cfg.Presence)
	reactor := expiry.NewReactor(redisClient.Client, cfg.Redis.Db, sessionStore, coordinator)

	presenceRepo := presence.NewRepository(mongodb, cfg.Database.PresenceCollection)
	settingsRepo := settings.NewRepository(mongodb, cfg.Database.UserCollection)
	graph := subscription.NewGraph(redisClient.Client, &cfg.Presence)
	channel := realtime.NewChannel(rabbitMQ.Channel, &cfg.Queue)

	broadcaster := broadcast.NewBroadcaster(presenceRepo, graph, channel, &cfg.Presence)
	consumer := events.NewConsumer(kafkaReader, broadcaster.Handle)

	lifecycleService := lifecycle.NewService(sessionStore, heartbeats, publisher, coordinator)
	queryService := query.NewService(sessionStore, presenceRepo, settingsRepo)

	return &Manager{
		Router:   router,
		Config:   cfg,
		Mongodb:  mongodb,
		Redis:    redisClient,
		RabbitMQ: rabbitMQ,

		KafkaWriter: kafkaWriter,
		KafkaReader: kafkaReader,

		SessionStore:     sessionStore,
		Heartbeats:       heartbeats,
		Publisher:        publisher,
		Debounce:         coordinator,
		Reactor:          reactor,
		Broadcaster:      broadcaster,
		Consumer:         consumer,
		Graph:            graph,
		PresenceRepo:     presenceRepo,
		SettingsRepo:     settingsRepo,
		QueryService:     queryService,
		LifecycleService: lifecycleService,

		LifecycleHandler:    lifecycle.NewHandler(cfg, lifecycleService, heartbeats),
		SubscriptionHandler: subscription.NewHandler(cfg, graph),
		QueryHandler:        query.NewHandler(cfg, queryService),
	}
}
