package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-secretary-funnel-be/internal/config"
	"ai-secretary-funnel-be/internal/controller"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/pkg/mailer"
	"ai-secretary-funnel-be/internal/repository/memory"
	"ai-secretary-funnel-be/internal/repository/unitofwork"
	"ai-secretary-funnel-be/internal/service"
	"ai-secretary-funnel-be/internal/websocket"
	"ai-secretary-funnel-be/pkg/enrichment"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/chatlog"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"
	"ai-secretary-funnel-be/pkg/funnel/reconcile"
	"ai-secretary-funnel-be/pkg/funnel/session"
	"ai-secretary-funnel-be/pkg/llm"
	"ai-secretary-funnel-be/pkg/llm/factory"
	"ai-secretary-funnel-be/pkg/metrics"

	pktNats "ai-secretary-funnel-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	FunnelController    controller.IFunnelController
	ChatController      controller.IChatController
	AnalyticsController controller.IAnalyticsController
	WebsocketController controller.IWebsocketController

	// Background services, started by main.go
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	WebSocketHub        *websocket.Hub

	Registry *prometheus.Registry
	Logger   logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	funnelMetrics := metrics.NewFunnel(registry)

	// Repositories are stateless over the shared pool.
	uow := uowFactory.NewUnitOfWork(context.Background())
	sessionRepo := uow.DemoSessionRepository()
	messageRepo := uow.ChatMessageRepository()

	// 2. Infrastructure
	var publisher events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		publisher = natsPub
	}

	var subscriber service.EventSubscriber
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		subscriber = natsSub
	}

	rdb := newRedisClient(cfg.App.RedisURL)

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, uuid.NewString(), wsLogger)

	// 3. Enrichment bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	enrichmentQueue := service.NewPublisherService(cfg.Keys.EnrichmentTopic, pubSub)

	// 4. Funnel core
	visitors := memory.NewVisitorRepository(cfg.Funnel.VisitorTTL, funnelMetrics)
	logStore := chatlog.NewRepositoryStore(messageRepo)

	deps := session.Deps{
		Store:    session.NewRepositoryStore(sessionRepo),
		Finder:   reconcile.NewReconciler(sessionRepo, sysLogger),
		LogStore: logStore,
		Logger:   sysLogger,
		Metrics:  funnelMetrics,
	}
	if rdb != nil {
		deps.Locker = session.NewRedisLocker(rdb)
	}

	funnelService := service.NewFunnelService(
		visitors,
		session.Config{
			TotalSteps:   cfg.Funnel.TotalSteps,
			PersistDelay: cfg.Funnel.PersistDebounce,
			LookupDelay:  cfg.Funnel.LookupDebounce,
		},
		deps,
		wsHub,
		publisher,
		enrichmentQueue,
		sysLogger,
	)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EnrichmentTopic,
		visitors,
		enrichment.NewClient(cfg.Funnel.EnrichmentWebhookURL, cfg.Keys.EnrichmentToken),
		publisher,
		sysLogger,
		funnelMetrics,
	)

	// 5. Completion orchestrator
	orch := newOrchestrator(cfg, sessionRepo, logStore, sysLogger, funnelMetrics)
	chatService := service.NewChatService(funnelService, orch, publisher, sysLogger)

	// 6. Back office
	analyticsService := service.NewAnalyticsService(uowFactory, cfg.Funnel.TotalSteps)
	logService := service.NewLogService(sysLogger)

	var notificationService *service.NotificationService
	if cfg.SMTP.Host != "" && cfg.SMTP.SalesInbox != "" {
		emailService := mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.Email,
			cfg.SMTP.SenderName,
		)
		notificationService = service.NewNotificationService(subscriber, emailService, cfg.SMTP.SalesInbox, sysLogger)
	}

	c := &Container{
		FunnelController:    controller.NewFunnelController(funnelService),
		ChatController:      controller.NewChatController(chatService),
		AnalyticsController: controller.NewAnalyticsController(analyticsService, logService),
		WebsocketController: controller.NewWebsocketController(funnelService, wsHub),

		ConsumerService:     consumerService,
		NotificationService: notificationService,
		WebSocketHub:        wsHub,

		Registry: registry,
		Logger:   sysLogger,
	}

	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	if natsPub != nil {
		c.closers = append(c.closers, natsPub.Close)
	}
	if natsSub != nil {
		c.closers = append(c.closers, natsSub.Close)
	}
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}
	c.closers = append(c.closers, func() { _ = sysLogger.Sync() })
	return c
}

// Close releases broker and cache connections in creation order.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}

// newRedisClient returns nil when redis is unreachable; the hub then stays
// local and persist cycles run without the cross-instance lock.
func newRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newOrchestrator(
	cfg *config.Config,
	sessions orchestrator.SessionFinder,
	history orchestrator.HistoryStore,
	sysLogger logger.ILogger,
	m *metrics.Funnel,
) *orchestrator.Orchestrator {
	baseURL := cfg.Ai.OpenAIBaseURL
	if cfg.Ai.LLMProvider == "ollama" {
		baseURL = cfg.Ai.OllamaBaseURL
	}

	var provider llm.LLMProvider
	p, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  baseURL,
		APIKey:   cfg.Keys.OpenAI,
	})
	if err != nil {
		sysLogger.Error("Bootstrap", "LLM provider unavailable, completions will fail", map[string]interface{}{
			"provider": cfg.Ai.LLMProvider,
			"error":    err.Error(),
		})
	} else {
		provider = p
	}

	clock := orchestrator.NewClock()

	tokens, err := orchestrator.NewTokenCounter()
	if err != nil {
		sysLogger.Warn("Bootstrap", "Tokenizer unavailable, estimating history size", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return orchestrator.NewOrchestrator(
		provider,
		sessions,
		history,
		clock,
		tokens,
		orchestrator.Config{
			Model:        cfg.Ai.LLMModel,
			Temperature:  cfg.Ai.Temperature,
			MaxTokens:    cfg.Ai.MaxTokens,
			MaxRounds:    cfg.Ai.MaxToolRounds,
			HistoryLimit: cfg.Ai.HistoryLimit,
			TokenBudget:  cfg.Ai.TokenBudget,
		},
		sysLogger,
		m,
	)
}
