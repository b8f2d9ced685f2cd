package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hearthfire/shelter-engine/internal/config"
	"github.com/hearthfire/shelter-engine/internal/logger"
	"github.com/hearthfire/shelter-engine/internal/services"
	servicequeue "github.com/hearthfire/shelter-engine/internal/services/queue"
	"github.com/hearthfire/shelter-engine/internal/storage"
	"github.com/hearthfire/shelter-engine/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Shelter Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"llm_provider", cfg.LLMProvider)

	// Initialize queue service
	queueClient, err := servicequeue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	jobQueue := servicequeue.NewJobQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	store := storage.NewHybridStorage(cfg.RedisURL, cfg.DataDir, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	// Initialize generation services
	textService, err := services.NewTextService(cfg, log)
	if err != nil {
		log.Error("Failed to create text service", "error", err)
		os.Exit(1)
	}
	imageService, err := services.NewImageService(cfg, log)
	if err != nil {
		log.Error("Failed to create image service", "error", err)
		os.Exit(1)
	}
	log.Info("Generation services initialized successfully",
		"model", cfg.ModelName,
		"flash_model", cfg.FlashModelName,
		"image_model", cfg.ImageModelName)

	processor := worker.NewPipelineProcessor(store, textService, imageService, cfg, log)

	// Separate Redis client for worker locking, apart from the queue
	// client so blocking dequeues never starve lock operations.
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}()

	log.Info("Redis connection established successfully")

	w := worker.New(jobQueue, processor, store, redisClient, log, os.Getenv("WORKER_ID"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for jobs...")

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give the worker time to finish the current job step
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
