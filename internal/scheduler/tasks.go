// Package scheduler runs campaign engine jobs through asynq: task
// definitions, the enqueueing client, the worker, and the periodic
// trigger loop.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"caregaps_backend/internal/campaign/domain"
)

// TaskCampaignRun executes one engine run for a campaign
const TaskCampaignRun = "campaign.run"

// CampaignRunPayload is the payload of a campaign run task
type CampaignRunPayload struct {
	Campaign string `json:"campaign"`
}

// NewCampaignRunTask builds an asynq task for one campaign run
func NewCampaignRunTask(campaign domain.CampaignType) (*asynq.Task, error) {
	payload, err := json.Marshal(CampaignRunPayload{Campaign: string(campaign)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal campaign run payload: %w", err)
	}
	return asynq.NewTask(TaskCampaignRun, payload), nil
}

// ParseCampaignRunPayload decodes a campaign run task payload
func ParseCampaignRunPayload(task *asynq.Task) (*CampaignRunPayload, error) {
	var payload CampaignRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign run payload: %w", err)
	}
	if payload.Campaign == "" {
		return nil, fmt.Errorf("campaign run payload missing campaign")
	}
	return &payload, nil
}
