// Package audit records officer service-time entries against the upstream
// append-only log. Entries are queued through asynq so a brief backend outage
// cannot lose an audit row; deployments without Redis fall back to a direct
// synchronous post.
package audit

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/platform/config"
)

// Recorder appends one service-time entry. Implemented by the asynq-backed
// Client and by SyncRecorder.
type Recorder interface {
	RecordServiceTime(ctx context.Context, entry upstream.ServiceTimeEntry, track upstream.Track) error
}

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// RecordServiceTime enqueues the entry for delivery by the audit worker.
func (c *Client) RecordServiceTime(ctx context.Context, entry upstream.ServiceTimeEntry, track upstream.Track) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewServiceTimeTask(ServiceTimePayload{Entry: entry, Track: track})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// SyncRecorder posts entries straight to the backend. Used when REDIS_URL is
// not set.
type SyncRecorder struct {
	Upstream *upstream.Client
}

func (s SyncRecorder) RecordServiceTime(ctx context.Context, entry upstream.ServiceTimeEntry, track upstream.Track) error {
	return s.Upstream.RecordServiceTime(ctx, entry, track)
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
