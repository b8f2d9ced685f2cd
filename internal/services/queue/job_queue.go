package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthfire/shelter-engine/pkg/queue"
)

// jobsKey is the global list all workers pull from.
const jobsKey = "production-jobs"

// JobQueue manages the queue of story and production jobs
type JobQueue struct {
	client *Client
}

func NewJobQueue(client *Client) *JobQueue {
	return &JobQueue{
		client: client,
	}
}

// Enqueue adds a job to the end of the global queue
func (q *JobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	data, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize job: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, jobsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next job from the global queue
// Returns nil if the queue is empty
func (q *JobQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	result, err := q.client.rdb.LPop(ctx, jobsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	job, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return job, nil
}

// BlockingDequeue blocks until a job is available, up to timeout.
// Returns nil with no error when the wait times out.
func (q *JobQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, jobsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Timed out waiting
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	job, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return job, nil
}

// Depth returns the number of jobs waiting in the global queue
func (q *JobQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, jobsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
