package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/api"
	"github.com/healthbot/backend/internal/api/handlers"
	"github.com/healthbot/backend/internal/appointment"
	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/cache/redis"
	"github.com/healthbot/backend/internal/chat"
	"github.com/healthbot/backend/internal/emergency"
	"github.com/healthbot/backend/internal/ingestion"
	"github.com/healthbot/backend/internal/knowledge"
	"github.com/healthbot/backend/internal/llm"
	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/middleware/ratelimit"
	"github.com/healthbot/backend/internal/query"
	"github.com/healthbot/backend/internal/scan"
	"github.com/healthbot/backend/internal/storage/objectstore"
	"github.com/healthbot/backend/internal/storage/sqlite"
	"github.com/healthbot/backend/internal/vector/milvus"
	"github.com/healthbot/backend/pkg/config"
	appLogger "github.com/healthbot/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting HealthBot API Server")
	metrics.Init()

	ctx := context.Background()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(ctx, cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(ctx); err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	objects, err := objectstore.NewClient(ctx, objectstore.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		appLogger.Fatal("Failed to create object store client", zap.Error(err))
	}

	deps := map[string]handlers.Pinger{
		"milvus": milvusClient,
		"minio":  objects,
	}

	// interfaces stay nil when redis is off so the services skip caching
	var (
		queryCache query.Cache
		invalidate ingestion.CacheInvalidator
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLMin)*time.Minute,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			queryCache = redisClient
			invalidate = redisClient
			deps["redis"] = redisClient
		}
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	kb, err := knowledge.LoadDefault()
	if err != nil {
		appLogger.Fatal("Failed to load knowledge base", zap.Error(err))
	}
	appLogger.Info("Knowledge base loaded", zap.Int("entries", kb.Len()))

	gateway := scan.NewHTTPGateway(cfg.Scan.Endpoint, time.Duration(cfg.Scan.TimeoutSec)*time.Second)

	chatManager := chat.NewManager(kb, gateway, time.Duration(cfg.Chat.IdleTimeoutMin)*time.Minute)
	if err := chatManager.Start(cfg.Chat.ReapSchedule); err != nil {
		appLogger.Fatal("Failed to start session reaper", zap.Error(err))
	}
	defer chatManager.Stop()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	authService := auth.NewService(sqliteClient, tokens)
	appointments := appointment.NewService(sqliteClient, objects)
	emergencies := emergency.NewService(sqliteClient)

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, objects, invalidate, ingestion.Options{
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		MaxFileBytes: cfg.Ingestion.MaxFileBytes,
	})
	queryEngine := query.NewEngine(llmClient, milvusClient, llmClient, queryCache, sqliteClient, cfg.Ingestion.TopK)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()

	app := api.NewApp(api.ServerConfig{
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:      cfg.Server.BodyLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Development:    cfg.Server.Development,
		RequestLogs:    true,
	}, api.Handlers{
		Tokens:      tokens,
		RateLimiter: limiter,
		Logger:      appLogger.Log,
		System: handlers.NewSystemHandler(sqliteClient, sqliteClient, deps, handlers.SystemInfo{
			EmbeddingModel: llmClient.EmbeddingModel(),
			LLMModel:       llmClient.Model(),
			VectorDB:       "Milvus",
		}),
		Auth:        handlers.NewAuthHandler(authService),
		Chat:        handlers.NewChatHandler(chatManager, cfg.Chat.MaxImageBytes),
		ChatSocket:  handlers.NewWebSocketHandler(chatManager, cfg.Chat.MaxImageBytes),
		Knowledge:   handlers.NewKnowledgeHandler(kb),
		Appointment: handlers.NewAppointmentHandler(appointments),
		Emergency:   handlers.NewEmergencyHandler(emergencies),
		Documents:   handlers.NewDocumentHandler(processor, sqliteClient),
		Query:       handlers.NewQueryHandler(queryEngine),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
