package queue

import (
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/hibiken/asynq"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	entryID   string
}

// NewScheduler registers the overdue reminder sweep on the cron spec from
// BorrowConfig.ReminderSchedule.
func NewScheduler(redisCfg *config.RedisConfig, borrowCfg *config.BorrowConfig) (*Scheduler, error) {
	s := asynq.NewScheduler(RedisOpt(redisCfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logging.Error("scheduled enqueue failed", "error", err)
				return
			}
			logging.Debug("scheduled task enqueued", "type", info.Type, "id", info.ID)
		},
	})

	entryID, err := s.Register(borrowCfg.ReminderSchedule,
		asynq.NewTask(TypeOverdueReminders, nil),
		asynq.Queue("low"),
		asynq.Unique(time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register reminder schedule %q: %w", borrowCfg.ReminderSchedule, err)
	}

	return &Scheduler{scheduler: s, entryID: entryID}, nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Close() {
	s.scheduler.Shutdown()
}
