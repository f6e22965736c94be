package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/queue"
	"github.com/hibiken/asynq"
	rdb "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestQueue is a Redis container shared by the task queue, the refresh-token
// store and the rate limiter.
type TestQueue struct {
	Queue     *queue.TaskQueue
	Redis     *rdb.Client
	Inspector *asynq.Inspector
	Config    config.RedisConfig
	container *redis.RedisContainer
}

func StartQueue(ctx context.Context) (*TestQueue, error) {
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithReuseByName("asset-backend-test-redis"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready to accept connections").
					WithStartupTimeout(30*time.Second),
				wait.ForListeningPort("6379/tcp").
					WithStartupTimeout(30*time.Second),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	cfg := config.RedisConfig{Addr: endpoint}

	taskQueue, err := queue.NewQueue(&cfg)
	if err != nil {
		return nil, err
	}

	return &TestQueue{
		Queue:     taskQueue,
		Redis:     rdb.NewClient(&rdb.Options{Addr: endpoint}),
		Inspector: asynq.NewInspector(queue.RedisOpt(&cfg)),
		Config:    cfg,
		container: redisContainer,
	}, nil
}

func NewTestQueue(t *testing.T) *TestQueue {
	t.Helper()
	tq, err := StartQueue(context.Background())
	if err != nil {
		t.Fatalf("failed to start test queue: %v", err)
	}
	t.Cleanup(tq.Close)
	return tq
}

func (tq *TestQueue) Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return tq.Queue.Enqueue(ctx, taskType, data, opts...)
}

// PendingTasks lists pending tasks of a type on the default queue. A queue
// that never saw a task counts as empty.
func (tq *TestQueue) PendingTasks(taskType string) []*asynq.TaskInfo {
	tasks, err := tq.Inspector.ListPendingTasks("default")
	if err != nil {
		return nil
	}
	var out []*asynq.TaskInfo
	for _, task := range tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}

// Cleanup flushes Redis between tests.
func (tq *TestQueue) Cleanup(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tq.Redis.FlushDB(ctx).Err(); err != nil {
		t.Logf("WARNING: failed to flush Redis between tests: %v", err)
	}
}

// Close releases the clients. The container is reused across packages and
// left to the reaper.
func (tq *TestQueue) Close() {
	if tq.Queue != nil {
		tq.Queue.Close()
	}
	if tq.Inspector != nil {
		tq.Inspector.Close()
	}
	if tq.Redis != nil {
		tq.Redis.Close()
	}
}
