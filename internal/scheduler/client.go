package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	scoreTaskMaxRetry = 3
	scoreTaskTimeout  = 60 * time.Second
)

type Client struct {
	client *asynq.Client
	queue  string
}

// LeadScoringEnqueuer queues a scoring pass for later execution.
type LeadScoringEnqueuer interface {
	EnqueueLeadScoring(ctx context.Context, payload LeadScorePayload) error
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueLeadScoring queues one scoring pass. A message id makes the task id
// deterministic so a redelivered webhook does not score twice.
func (c *Client) EnqueueLeadScoring(ctx context.Context, payload LeadScorePayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewLeadScoreTask(payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(scoreTaskMaxRetry),
		asynq.Timeout(scoreTaskTimeout),
	}
	if payload.MessageID != "" {
		opts = append(opts, asynq.TaskID(TaskLeadScore+":"+payload.MessageID))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NewRedisClient returns a go-redis client for the configured URL, or nil
// when Redis is not configured.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfig(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfig(base *tls.Config, insecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if insecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}

// parseLeadScoreIDs validates the ids carried by a task payload.
func parseLeadScoreIDs(p LeadScorePayload) (leadID, tenantID uuid.UUID, err error) {
	leadID, err = uuid.Parse(p.LeadID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid lead id %q: %w", p.LeadID, err)
	}
	tenantID, err = uuid.Parse(p.TenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid tenant id %q: %w", p.TenantID, err)
	}
	return leadID, tenantID, nil
}
