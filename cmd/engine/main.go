// Command engine runs the campaign pipeline once and exits. Useful for
// backfills and manual reruns outside the scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/internal/campaign/repository"
	"caregaps_backend/internal/campaign/service"
	"caregaps_backend/platform/config"
	"caregaps_backend/platform/db"
	"caregaps_backend/platform/logger"
)

func main() {
	campaignFlag := flag.String("campaign", "", "campaign to run; empty runs every active campaign")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, cfg.GetDatabaseURL(), cfg.GetMigrationsDir()); err != nil {
		log.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.GetDatabaseURL())
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo, err := repository.New(pool, cfg.GetWarehouseSchema())
	if err != nil {
		log.Error("failed to create repository", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(repo, repo, cfg, log)
	if err != nil {
		log.Error("failed to create campaign service", "error", err)
		os.Exit(1)
	}

	campaigns := cfg.GetActiveCampaigns()
	if *campaignFlag != "" {
		campaigns = []string{*campaignFlag}
	}

	failed := false
	for _, c := range campaigns {
		stats, err := svc.Run(ctx, domain.CampaignType(c))
		if err != nil {
			log.Error("campaign run failed", "campaign", c, "error", err)
			failed = true
			continue
		}
		log.Info("campaign run complete",
			"campaign", c,
			"run_id", stats.RunID,
			"subjects", stats.Subjects,
			"matches", stats.Matches,
			"opportunities", stats.Opportunities,
		)
	}

	if failed {
		os.Exit(1)
	}
}
