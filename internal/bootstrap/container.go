package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"docchat-be/internal/config"
	"docchat-be/internal/constant"
	"docchat-be/internal/controller"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/implementation"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/service"
	"docchat-be/internal/websocket"
	"docchat-be/pkg/chunker"
	"docchat-be/pkg/database"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/embedding/jina"
	"docchat-be/pkg/llm/factory"
	pktNats "docchat-be/pkg/nats"
	"docchat-be/pkg/rag/responder"
	"docchat-be/pkg/store"
)

type Container struct {
	SessionController controller.ISessionController
	WebsocketHandler  *websocket.Handler

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	SessionRegistry *memory.SessionRegistry
	Logger          logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	publisherService := service.NewPublisherService(pubSub, constant.SessionEventsTopic)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// Optional Redis-backed embedding cache. Missing Redis is not fatal;
	// every embedding just hits the provider.
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Invalid REDIS_URL: %v (embedding cache disabled)", err)
		} else {
			rdb := redis.NewClient(opt)
			if err := rdb.Ping(context.Background()).Err(); err != nil {
				log.Printf("[WARN] Failed to connect to Redis: %v (embedding cache disabled)", err)
			} else {
				cache := embedding.NewRedisVectorCache(rdb, cfg.Engine.EmbedCacheTTL())
				embeddingProvider = embedding.WithCache(embeddingProvider, cache, cfg.Ai.EmbeddingModel)
				log.Printf("[INFO] Embedding cache enabled (Redis)")
			}
		}
	}

	llmKey := cfg.Keys.GoogleGemini
	llmBaseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "huggingface" {
		llmKey = cfg.Keys.HuggingFace
		llmBaseURL = cfg.Ai.HuggingFaceBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, llmKey, cfg.Ai.LLMModel, llmBaseURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	rsp := responder.New(embeddingProvider, llmProvider, cfg.Engine.RetrievalK, cfg.Engine.HistoryWindow)

	// 4. Infrastructure
	// NATS mirror for lifecycle events; absent NATS only loses the mirror.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Optional Postgres catalog of session lifecycles.
	var catalogRepo contract.CatalogRepository
	if cfg.Database.Connection != "" {
		db, err := database.NewPostgresFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Printf("[WARN] Failed to connect to catalog database: %v (catalog disabled)", err)
		} else {
			catalogRepo = implementation.NewCatalogRepository(db)
			log.Printf("[INFO] Session catalog enabled (Postgres)")
		}
	}

	// 5. Session Registry and Services
	// The eviction hook closes the loop back into the chat service, which is
	// built right after the registry.
	var chatService service.IChatService
	registry := memory.NewSessionRegistry(cfg.Engine.IdleTimeout(), func(sess *store.Session) {
		if chatService != nil {
			chatService.NotifyEvicted(sess)
		}
	})
	chatService = service.NewChatService(registry, rsp, publisherService, natsPub, sysLogger)

	splitter := chunker.NewSplitter(cfg.Engine.ChunkSize, cfg.Engine.ChunkOverlap)
	ingestionService := service.NewIngestionService(
		registry,
		splitter,
		embeddingProvider,
		publisherService,
		natsPub,
		sysLogger,
		service.IngestionConfig{
			MaxUploadBytes:   cfg.Engine.MaxUploadBytes,
			EmbedConcurrency: cfg.Engine.EmbedConcurrency,
			EmbedDimension:   cfg.Ai.EmbeddingDimension,
		},
	)

	consumerService := service.NewConsumerService(pubSub, constant.SessionEventsTopic, catalogRepo, sysLogger)

	// 6. Transport
	wsLogger := logger.NewIsolatedLogger("logs/session_chat.log")
	wsHandler := websocket.NewHandler(registry, chatService, wsLogger, cfg.Engine.IdleTimeout())

	return &Container{
		SessionController: controller.NewSessionController(ingestionService, chatService),
		WebsocketHandler:  wsHandler,
		ConsumerService:   consumerService,
		SessionRegistry:   registry,
		Logger:            sysLogger,
	}
}
