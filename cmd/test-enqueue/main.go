package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	servicequeue "github.com/hearthfire/shelter-engine/internal/services/queue"
	"github.com/hearthfire/shelter-engine/pkg/queue"
)

// Enqueues a story job (and optionally a production job) for a project so a
// running worker has something to chew on during local development.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <project-id> [chapter]\n", os.Args[0])
		os.Exit(1)
	}

	projectID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal("Invalid project ID:", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: redisURL})
	defer client.Close()

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis successfully!")

	jobQueue := servicequeue.NewJobQueue(servicequeue.NewClientFromRedis(client, slog.Default()))

	if len(os.Args) > 2 {
		var chapter int
		if _, err := fmt.Sscanf(os.Args[2], "%d", &chapter); err != nil || chapter < 1 {
			log.Fatal("Invalid chapter number:", os.Args[2])
		}

		job := &queue.Job{
			JobID:      uuid.New().String(),
			Type:       queue.JobTypeProduction,
			ProjectID:  projectID,
			Chapter:    chapter,
			EnqueuedAt: time.Now(),
		}
		if err := jobQueue.Enqueue(ctx, job); err != nil {
			log.Fatal("Failed to enqueue job:", err)
		}
		fmt.Printf("Enqueued production job %s for chapter %d\n", job.JobID, chapter)
	} else {
		job := &queue.Job{
			JobID:      uuid.New().String(),
			Type:       queue.JobTypeStory,
			ProjectID:  projectID,
			EnqueuedAt: time.Now(),
		}
		if err := jobQueue.Enqueue(ctx, job); err != nil {
			log.Fatal("Failed to enqueue job:", err)
		}
		fmt.Printf("Enqueued story job %s\n", job.JobID)
	}

	depth, err := jobQueue.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("Queue depth: %d jobs\n", depth)
	fmt.Println("Now start the worker to see it process the job:")
	fmt.Println("  go run cmd/worker/main.go")
}
