package repository

import (
	"context"
	"fmt"
	"hash/fnv"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/platform/apperr"
)

// AcquireRunLock takes a session advisory lock serializing engine runs
// for one campaign. It returns a release function, or a conflict error
// when another run already holds the lock.
func (r *Repository) AcquireRunLock(ctx context.Context, campaign domain.CampaignType) (func(), error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for run lock: %w", err)
	}

	lockKey := campaignLockKey(campaign)

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, apperr.Conflict(fmt.Sprintf("a run for campaign %s is already in progress", campaign))
	}

	release := func() {
		// Best effort: releasing the connection drops the session lock
		// even if the unlock call itself fails.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
		conn.Release()
	}

	return release, nil
}

func campaignLockKey(campaign domain.CampaignType) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("campaign_run:" + string(campaign)))
	return int64(h.Sum64())
}

// RecordRun persists the bookkeeping row for a completed engine run
func (r *Repository) RecordRun(ctx context.Context, run domain.RunRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaign_runs (
			id, campaign_type, started_at, finished_at,
			subjects, matches, opportunities, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`,
		run.ID, run.CampaignType, run.StartedAt, run.FinishedAt,
		run.Subjects, run.Matches, run.Opportunities, run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}
