package queue

import (
	"context"
	"time"

	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueUsage publishes the usage record of a finished request. The request
// id doubles as the task id, so a record is queued at most once.
func (c *Client) EnqueueUsage(ctx context.Context, usage domain.UsageLog) (*asynq.TaskInfo, error) {
	task, err := NewRecordUsageTask(usage)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(usage.RequestID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Retention(24*time.Hour),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
