package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/aws"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/hibiken/asynq"
)

// ReminderSweeper sends reminders for loans past their end date.
type ReminderSweeper interface {
	SendOverdueReminders(ctx context.Context, asOf time.Time) (int, error)
}

type Worker struct {
	server    *asynq.Server
	emails    aws.EmailService
	reminders ReminderSweeper
	now       func() time.Time
}

func NewWorker(cfg *config.RedisConfig, emails aws.EmailService, reminders ReminderSweeper) *Worker {
	server := asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logging.Error("process task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	return &Worker{
		server:    server,
		emails:    emails,
		reminders: reminders,
		now:       time.Now,
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, w.HandleEmailDelivery)
	if w.reminders != nil {
		mux.HandleFunc(TypeOverdueReminders, w.HandleOverdueReminders)
	}
	return mux
}

func (w *Worker) Start() error {
	return w.server.Start(w.Mux())
}

func (w *Worker) Close() {
	if w.server != nil {
		w.server.Shutdown()
	}
}

func (w *Worker) HandleEmailDelivery(ctx context.Context, t *asynq.Task) error {
	var p EmailDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	logging.Info("Sending email", "to", p.To, "subject", p.Subject)
	if err := w.emails.SendEmail(ctx, p.To, p.Subject, p.Body); err != nil {
		return fmt.Errorf("emails.SendEmail failed: %w", err)
	}

	return nil
}

func (w *Worker) HandleOverdueReminders(ctx context.Context, _ *asynq.Task) error {
	sent, err := w.reminders.SendOverdueReminders(ctx, w.now())
	if err != nil {
		return fmt.Errorf("overdue reminder sweep failed: %w", err)
	}
	logging.Info("Overdue reminder sweep finished", "sent", sent)
	return nil
}
