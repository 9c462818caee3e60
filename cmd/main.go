package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/config"
	"document-rag-platform/internal/logger"
	"document-rag-platform/internal/queue"
	"document-rag-platform/internal/store"
	"document-rag-platform/internal/telemetry"
	"document-rag-platform/internal/vectorstore"
	"document-rag-platform/middleware"
	"document-rag-platform/routes"
	"document-rag-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("document-rag-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracing:", err)
		}
		defer shutdown()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	geminiClient, err := ai.NewClient(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	vectorClient := vectorstore.NewClient(cfg.QdrantURL, cfg.QdrantAPIKey)
	metaStore := store.NewMetadataStore(db)
	extractor := services.NewTextExtractor()
	ingestion := services.NewIngestionService(cfg, metaStore, geminiClient, vectorClient)
	rag := services.NewRAGService(cfg, geminiClient, geminiClient, vectorClient)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient)

	sweeper := services.NewRetrySweeper(metaStore, enqueuer, time.Duration(cfg.RetrySweepMinutes)*time.Minute)
	go sweeper.Start()
	defer sweeper.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupAuthRoutes(router, cfg, db)
	routes.SetupDocumentRoutes(router, cfg, metaStore, ingestion, extractor, enqueuer)
	routes.SetupQueryRoutes(router, cfg, rag)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
