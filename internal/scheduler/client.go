package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"outreach_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks from the API process.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient creates an enqueue client from the scheduler configuration.
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

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueScrapeJob schedules a scrape run and returns the task handle.
func (c *Client) EnqueueScrapeJob(ctx context.Context, jobID uuid.UUID) (string, error) {
	task, err := NewScrapeJobRunTask(ScrapeJobRunPayload{JobID: jobID.String()})
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(3))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// EnqueueEmailSend schedules the delivery of a drafted email, optionally
// delayed for cadence spacing.
func (c *Client) EnqueueEmailSend(ctx context.Context, emailID uuid.UUID, runAt time.Time) (string, error) {
	task, err := NewEmailSendTask(EmailSendPayload{EmailID: emailID.String()})
	if err != nil {
		return "", err
	}

	opts := []asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(3)}
	if !runAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(runAt))
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
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
