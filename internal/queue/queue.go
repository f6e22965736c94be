package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/hibiken/asynq"
)

const (
	TypeEmailDelivery    = "email:delivery"
	TypeOverdueReminders = "borrow:overdue_reminders"
)

type EmailDeliveryPayload struct {
	To      string
	Subject string
	Body    string
}

func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type TaskQueue struct {
	client *asynq.Client
}

func NewQueue(cfg *config.RedisConfig) (*TaskQueue, error) {
	client := asynq.NewClient(RedisOpt(cfg))

	if err := client.Ping(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis queue: %w", err)
	}

	logging.Info("Connected to Redis task queue", "addr", cfg.Addr)

	return &TaskQueue{client: client}, nil
}

// Enqueue marshals data as the JSON payload of a new task.
func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return q.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
}

func (q *TaskQueue) Ping() error {
	return q.client.Ping()
}

func (q *TaskQueue) Close() error {
	return q.client.Close()
}
