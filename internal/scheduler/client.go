package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"caregaps_backend/internal/campaign/domain"
)

// Client enqueues campaign tasks
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient creates an asynq client from a Redis URL
func NewClient(redisURL, queue string) (*Client, error) {
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt), queue: queue}, nil
}

// EnqueueCampaignRun schedules an engine run for the campaign. Runs
// are deduplicated on the campaign so a pending run is not stacked.
func (c *Client) EnqueueCampaignRun(ctx context.Context, campaign domain.CampaignType) error {
	task, err := NewCampaignRunTask(campaign)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(fmt.Sprintf("%s:%s", TaskCampaignRun, campaign)),
		asynq.MaxRetry(3),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue campaign run: %w", err)
	}
	return nil
}

// Close releases the underlying asynq client
func (c *Client) Close() error {
	return c.client.Close()
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}, nil
}
