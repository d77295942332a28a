package scheduler

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/internal/campaign/service"
	"caregaps_backend/platform/apperr"
	"caregaps_backend/platform/logger"
)

// CampaignRunner executes engine runs; satisfied by the campaign service
type CampaignRunner interface {
	Run(ctx context.Context, campaign domain.CampaignType) (*service.RunStats, error)
}

// Worker consumes campaign tasks
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner CampaignRunner
	log    *logger.Logger
}

// NewWorker creates the asynq worker for campaign runs
func NewWorker(redisURL, queue string, concurrency int, runner CampaignRunner, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})

	w := &Worker{server: server, mux: asynq.NewServeMux(), runner: runner, log: log}
	w.mux.HandleFunc(TaskCampaignRun, w.handleCampaignRun)

	return w, nil
}

// Start begins processing tasks; it blocks until Shutdown is called
func (w *Worker) Start() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker gracefully
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleCampaignRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCampaignRunPayload(task)
	if err != nil {
		w.log.Error("invalid campaign run task", "error", err)
		return err
	}

	started := time.Now()
	stats, err := w.runner.Run(ctx, domain.CampaignType(payload.Campaign))
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			// Another run holds the lock; the next scheduled trigger
			// will pick this campaign up again.
			w.log.Warn("campaign run skipped, already in progress", "campaign", payload.Campaign)
			return nil
		}
		w.log.Error("campaign run failed", "campaign", payload.Campaign, "error", err)
		return err
	}

	w.log.Info("campaign run finished",
		"campaign", payload.Campaign,
		"run_id", stats.RunID,
		"opportunities", stats.Opportunities,
		"duration", time.Since(started).String(),
	)
	return nil
}
