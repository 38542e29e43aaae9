package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/controller"
	"ai-saleschat-be/internal/pkg/logger"
	"ai-saleschat-be/internal/repository/implementation"
	"ai-saleschat-be/internal/repository/memory"
	"ai-saleschat-be/internal/repository/unitofwork"
	"ai-saleschat-be/internal/service"
	"ai-saleschat-be/internal/websocket"
	"ai-saleschat-be/pkg/agent"
	"ai-saleschat-be/pkg/ai/router"
	"ai-saleschat-be/pkg/catalog"
	"ai-saleschat-be/pkg/events"
	"ai-saleschat-be/pkg/funnel"
	"ai-saleschat-be/pkg/llm/factory"
	"ai-saleschat-be/pkg/ratelimit"
	"ai-saleschat-be/pkg/respcache"
	"ai-saleschat-be/pkg/session"

	pktNats "ai-saleschat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const eventTopic = "chat_events"

type Container struct {
	// Controllers
	ChatController controller.IChatController
	OpsController  controller.IOpsController

	// Background Services (Exposed for main.go to run)
	AnalyticsService service.IAnalyticsService

	// WebSocket streaming
	WebSocketHub     *websocket.Hub
	WebSocketHandler *websocket.Handler
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	redisUp := true
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to postgres-backed stores", err)
		redisUp = false
	}

	// Event Bus: every domain event goes to the in-process watermill
	// channel for local analytics, and to NATS when it is reachable.
	// A typed nil must not leak into the publisher interfaces: the
	// services treat a non-nil interface as a live bus.
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	analytics := service.NewAnalyticsService(pubSub, eventTopic)

	var natsTarget service.EventPublisher
	if natsPub != nil {
		natsTarget = natsPub
	}
	eventPublisher := service.NewFanoutPublisher(service.NewBusPublisher(pubSub, eventTopic), natsTarget)
	var cachePublisher respcache.Publisher = eventPublisher

	// 3. Admission Control. Redis when it is up, postgres otherwise, so
	// blocks and windows survive restarts either way.
	var limiterStore ratelimit.Store
	if redisUp {
		limiterStore = ratelimit.NewRedisStore(rdb, limiterRetention(cfg.RateLimit.Classes))
	} else {
		limiterStore = ratelimit.NewDbStore(implementation.NewRateLimitRepository(db))
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit.Classes, log.Default())

	// 4. Response Cache
	var cacheStore respcache.Store
	if redisUp {
		cacheStore = respcache.NewRedisStore(rdb)
	} else {
		cacheStore = respcache.NewDbStore(implementation.NewCacheEntryRepository(db))
	}
	respCache := respcache.NewCache(cacheStore, cachePublisher, cfg.Cache.DefaultTTL, log.Default())
	respCache.StartSweeper(context.Background(), cfg.Cache.SweepInterval)

	// 5. Model Routing
	modelRouter := router.NewRouter(router.Config{
		DefaultModel:     cfg.Ai.LLMModel,
		PremiumModel:     cfg.Ai.PremiumModel,
		LongMessageChars: cfg.Ai.LongMessageChars,
	}, log.Default())

	// 6. Funnel Stage Machine
	machine := funnel.NewMachine(cfg.Funnel, log.Default())

	// 7. LLM Provider and Agent
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	catalogProvider := catalog.NewHTTPProvider(cfg.Keys.CatalogURL)
	executor := agent.NewExecutor(llmProvider, []agent.Tool{
		agent.NewSearchTool(catalogProvider),
		agent.NewRespondTool(llmProvider),
	}, cfg.Agent, log.Default())

	// 8. Session Storage
	hotSessions := memory.NewSessionRepository(cfg.Funnel.SessionTTL)
	sessions := session.NewManager(hotSessions, machine, uowFactory, log.Default())
	sessions.StartIdleSweep(context.Background(), cfg.Funnel.SweepInterval)

	// A sibling instance closing a session must not leave our hot copy
	// serving turns against a dead conversation.
	if natsSub != nil {
		err := natsSub.Subscribe("events."+events.TypeSessionClosed, "chat-session-evictor", func(ctx context.Context, event events.Event) error {
			raw, _ := event.Payload()["session_id"].(string)
			id, perr := uuid.Parse(raw)
			if perr != nil {
				return nil
			}
			sessions.Evict(id)
			return nil
		})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to session close events: %v", err)
		}
	}

	// 9. Services
	chatService := service.NewChatService(
		uowFactory,
		limiter,
		respCache,
		modelRouter,
		machine,
		sessions,
		executor,
		llmProvider,
		eventPublisher,
		sysLogger,
	)
	opsService := service.NewOpsService(respCache, modelRouter, limiter, analytics, cfg, sysLogger)

	// 10. WebSocket Hub
	var hubRedis *redis.Client
	if redisUp {
		hubRedis = rdb
	}
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(hubRedis, wsLogger)
	go wsHub.Run()

	return &Container{
		ChatController:   controller.NewChatController(chatService),
		OpsController:    controller.NewOpsController(opsService),
		AnalyticsService: analytics,
		WebSocketHub:     wsHub,
		WebSocketHandler: websocket.NewHandler(wsHub, chatService),
	}
}

// limiterRetention sizes redis key expiry to outlive the longest
// window or block any class can impose.
func limiterRetention(classes map[string]config.CredentialClass) time.Duration {
	retention := time.Hour
	for _, class := range classes {
		if class.Window > retention {
			retention = class.Window
		}
		if class.MaxBlock > retention {
			retention = class.MaxBlock
		}
	}
	return 2 * retention
}
