package tasks

import (
	"fmt"

	"mdmc/internal/config"
	"mdmc/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// Periodic is one recurring task.
type Periodic struct {
	Spec     string
	TaskType string
	Queue    string
}

// PeriodicTasks lists everything the scheduler registers.
var PeriodicTasks = []Periodic{
	{Spec: SchedulePruneRefreshTokens, TaskType: TypePruneRefreshTokens, Queue: QueueLow},
	{Spec: ScheduleOverdueDigest, TaskType: TypeOverdueDigest, Queue: QueueDefault},
}

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

func NewScheduler(cfg config.RedisConfig, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{}),
		logger:    logger,
	}
}

// Start registers the periodic tasks and runs the scheduler until Stop.
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

func (s *Scheduler) registerTasks() error {
	for _, p := range PeriodicTasks {
		if err := s.Register(p.Spec, p.TaskType, nil, asynq.Queue(p.Queue), asynq.MaxRetry(RetryMin), asynq.Timeout(TimeoutLong)); err != nil {
			return err
		}
	}
	s.logger.Info("registered all periodic tasks")
	return nil
}

// ValidateSpec rejects anything cron.ParseStandard does not accept.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// Register adds a periodic task after validating spec.
func (s *Scheduler) Register(spec string, taskType string, payload []byte, opts ...asynq.Option) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	entryID, err := s.scheduler.Register(spec, asynq.NewTask(taskType, payload, opts...))
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", taskType, err)
	}

	s.logger.Info("registered %s %s %s", taskType, spec, entryID)
	return nil
}
