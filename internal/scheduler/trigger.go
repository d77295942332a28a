package scheduler

import (
	"context"
	"time"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/platform/logger"
)

// Enqueuer schedules campaign runs; satisfied by Client
type Enqueuer interface {
	EnqueueCampaignRun(ctx context.Context, campaign domain.CampaignType) error
}

// Trigger periodically enqueues a run for every active campaign
type Trigger struct {
	enqueuer  Enqueuer
	campaigns []domain.CampaignType
	interval  time.Duration
	log       *logger.Logger
}

// NewTrigger creates the periodic trigger
func NewTrigger(enqueuer Enqueuer, campaigns []string, interval time.Duration, log *logger.Logger) *Trigger {
	types := make([]domain.CampaignType, 0, len(campaigns))
	for _, c := range campaigns {
		types = append(types, domain.CampaignType(c))
	}
	return &Trigger{enqueuer: enqueuer, campaigns: types, interval: interval, log: log}
}

// Start enqueues an initial round immediately and then on every tick
// until the context is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	t.enqueueAll(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.enqueueAll(ctx)
		}
	}
}

func (t *Trigger) enqueueAll(ctx context.Context) {
	for _, campaign := range t.campaigns {
		if err := t.enqueuer.EnqueueCampaignRun(ctx, campaign); err != nil {
			t.log.Error("failed to enqueue scheduled run", "campaign", string(campaign), "error", err)
			continue
		}
		t.log.Debug("enqueued scheduled run", "campaign", string(campaign))
	}
}
