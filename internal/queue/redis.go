package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisPinger checks that the queue's Redis answers, for readiness probes.
type RedisPinger struct {
	client redis.UniversalClient
}

func NewRedisPinger(opt asynq.RedisClientOpt) *RedisPinger {
	return &RedisPinger{
		client: redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Username: opt.Username,
			Password: opt.Password,
			DB:       opt.DB,
		}),
	}
}

func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (p *RedisPinger) Close() error {
	return p.client.Close()
}
