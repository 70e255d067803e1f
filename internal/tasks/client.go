package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"mdmc/internal/config"
	"mdmc/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Enqueuer is what the event bridge needs from a task client.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, taskType string, p EmailPayload) error
}

// TaskClient enqueues tasks on the redis-backed asynq queues.
type TaskClient struct {
	client *asynq.Client
	logger *logger.Logger
}

var _ Enqueuer = (*TaskClient)(nil)

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewTaskClient(cfg config.RedisConfig) *TaskClient {
	return &TaskClient{
		client: asynq.NewClient(redisOpt(cfg)),
		logger: logger.New("TASKS"),
	}
}

func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueEmail puts one email task on the critical queue.
func (c *TaskClient) EnqueueEmail(ctx context.Context, taskType string, p EmailPayload) error {
	if _, ok := emailTemplates[taskType]; !ok {
		return fmt.Errorf("unknown email task %q", taskType)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, body),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryMax),
		asynq.Timeout(TimeoutShort),
	)
	if err != nil {
		return c.logger.Error("Failed to enqueue %s", err, taskType)
	}
	c.logger.Debug("Enqueued %s as %s", taskType, info.ID)
	return nil
}
