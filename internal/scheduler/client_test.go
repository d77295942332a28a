package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"

	"caregaps_backend/internal/campaign/domain"
)

func TestClientEnqueueCampaignRun(t *testing.T) {
	redis := miniredis.RunT(t)

	client, err := NewClient("redis://"+redis.Addr(), "campaigns")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.EnqueueCampaignRun(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("EnqueueCampaignRun() error = %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redis.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("campaigns")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d pending tasks, want 1", len(tasks))
	}
	if tasks[0].Type != TaskCampaignRun {
		t.Errorf("task type = %s, want %s", tasks[0].Type, TaskCampaignRun)
	}
}

func TestClientEnqueueDeduplicatesPendingRuns(t *testing.T) {
	redis := miniredis.RunT(t)

	client, err := NewClient("redis://"+redis.Addr(), "campaigns")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	for i := 0; i < 3; i++ {
		if err := client.EnqueueCampaignRun(context.Background(), domain.CampaignFluVaccine); err != nil {
			t.Fatalf("EnqueueCampaignRun() #%d error = %v", i, err)
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redis.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("campaigns")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("got %d pending tasks, want 1 after deduplication", len(tasks))
	}
}

func TestNewClientRejectsBadRedisURL(t *testing.T) {
	if _, err := NewClient("not-a-url", "campaigns"); err == nil {
		t.Error("expected error for malformed redis URL")
	}
}
