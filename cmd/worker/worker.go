package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/config"
	"document-rag-platform/internal/logger"
	"document-rag-platform/internal/queue"
	"document-rag-platform/internal/store"
	"document-rag-platform/internal/telemetry"
	"document-rag-platform/internal/vectorstore"
	"document-rag-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

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

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	geminiClient, err := ai.NewClient(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	vectorClient := vectorstore.NewClient(cfg.QdrantURL, cfg.QdrantAPIKey)
	metaStore := store.NewMetadataStore(db)
	extractor := services.NewTextExtractor()
	ingestion := services.NewIngestionService(cfg, metaStore, geminiClient, vectorClient)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(metaStore, extractor, ingestion, metrics)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskDocumentIngest, processor.ProcessDocumentIngest)

	logger.Info("starting worker", "concurrency", 20, "redis", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
