// Package service implements the campaign engine: resolving subjects
// from upcoming appointments, matching household candidates, filtering
// for eligibility, and materializing opportunity records.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/platform/apperr"
	"caregaps_backend/platform/config"
	"caregaps_backend/platform/logger"
)

// Source reads engine inputs from the warehouse
type Source interface {
	ListUpcomingAppointments(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	GetPersons(ctx context.Context, personIDs []string) (map[string]domain.Person, error)
	ListGuardianLinks(ctx context.Context, personIDs []string) ([]domain.GuardianLink, error)
	ListGuardianLinksByNames(ctx context.Context, lowerNames []string) ([]domain.GuardianLink, error)
	GetBillingAccounts(ctx context.Context, accountIDs []string) (map[string]domain.BillingAccount, error)
	ListAccountMembers(ctx context.Context, accountIDs []string) ([]domain.AccountMember, error)
	ListDueStatuses(ctx context.Context, personIDs, topicIDs []string) ([]domain.DueStatus, error)
	ListDueHistory(ctx context.Context, personIDs, topicIDs []string) ([]domain.DueSnapshot, error)
	ListDiagnosisMatches(ctx context.Context, personIDs []string, codePrefix string) (map[string]bool, error)
}

// Store persists engine outputs and serializes runs
type Store interface {
	AcquireRunLock(ctx context.Context, campaign domain.CampaignType) (func(), error)
	SaveOpportunities(ctx context.Context, campaign domain.CampaignType, runID string, opps []domain.Opportunity) error
	RecordRun(ctx context.Context, run domain.RunRecord) error
	ListOpportunities(ctx context.Context, filter domain.OpportunityFilter) (*domain.OpportunityPage, error)
	GetCampaignStats(ctx context.Context, campaign domain.CampaignType) (*domain.CampaignStats, error)
	UpdateOpportunityStatus(ctx context.Context, key domain.Key, to domain.Status, message string) (*domain.Opportunity, error)
}

// Service orchestrates campaign runs and opportunity access
type Service struct {
	source   Source
	store    Store
	cfg      config.EngineConfig
	log      *logger.Logger
	denylist domain.Denylist
	now      func() time.Time
}

// New creates the campaign service. Engine parameters are validated
// here so a misconfigured engine fails at startup, not mid-run.
func New(source Source, store Store, cfg config.EngineConfig, log *logger.Logger) (*Service, error) {
	for _, c := range cfg.GetActiveCampaigns() {
		if !domain.IsKnownCampaign(domain.CampaignType(c)) {
			return nil, apperr.Validation(fmt.Sprintf("unknown campaign %q in active campaigns", c))
		}
		if len(cfg.GetTopicIDs(c)) == 0 {
			return nil, apperr.Validation(fmt.Sprintf("campaign %q has no topic aliases configured", c))
		}
	}
	for _, s := range cfg.GetEligibleDueStates() {
		switch domain.DueState(s) {
		case domain.DueStateDueSoon, domain.DueStateDueNow, domain.DueStateOverdue:
		default:
			return nil, apperr.Validation(fmt.Sprintf("due state %q cannot qualify a candidate", s))
		}
	}

	return &Service{
		source:   source,
		store:    store,
		cfg:      cfg,
		log:      log,
		denylist: domain.NewDenylist(cfg.GetGuarantorDenylist()),
		now:      time.Now,
	}, nil
}

// RunStats summarizes one engine run
type RunStats struct {
	RunID         string
	Subjects      int
	Matches       int
	Opportunities int
}

// Run executes the full engine pipeline for one campaign and replaces
// its opportunity set. Concurrent runs for the same campaign are
// rejected.
func (s *Service) Run(ctx context.Context, campaign domain.CampaignType) (*RunStats, error) {
	if !domain.IsKnownCampaign(campaign) {
		return nil, apperr.Validation(fmt.Sprintf("unknown campaign %q", campaign))
	}

	release, err := s.store.AcquireRunLock(ctx, campaign)
	if err != nil {
		return nil, err
	}
	defer release()

	runID := uuid.NewString()
	startedAt := s.now()
	log := s.log.WithRunID(runID)
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)

	log.Info("starting campaign run", "campaign", string(campaign))

	stats, runErr := s.runPipeline(ctx, campaign, runID, log)

	record := domain.RunRecord{
		ID:           runID,
		CampaignType: campaign,
		StartedAt:    startedAt,
		FinishedAt:   s.now(),
		Status:       "completed",
	}
	if runErr != nil {
		record.Status = "failed"
		record.Error = runErr.Error()
	} else {
		record.Subjects = stats.Subjects
		record.Matches = stats.Matches
		record.Opportunities = stats.Opportunities
	}

	if err := s.store.RecordRun(ctx, record); err != nil {
		log.Error("failed to record run", "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}

	log.RunSummary(string(campaign), stats.Subjects, stats.Matches, stats.Opportunities,
		float64(record.FinishedAt.Sub(record.StartedAt).Microseconds())/1000.0)

	return stats, nil
}

func (s *Service) runPipeline(ctx context.Context, campaign domain.CampaignType, runID string, log *logger.Logger) (*RunStats, error) {
	now := s.now()

	subjects, err := s.resolveSubjects(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subjects: %w", err)
	}
	log.Debug("resolved subjects", "count", len(subjects))

	matches, persons, err := s.matchHouseholds(ctx, subjects, now)
	if err != nil {
		return nil, fmt.Errorf("failed to match households: %w", err)
	}
	log.Debug("matched candidates", "count", len(matches))

	eligible, err := s.filterEligible(ctx, campaign, matches, persons, now)
	if err != nil {
		return nil, fmt.Errorf("failed to filter eligibility: %w", err)
	}
	log.Debug("eligible candidates", "count", len(eligible))

	opps := s.materialize(campaign, eligible, domain.NewSubjectIndex(subjects), persons)

	if err := s.store.SaveOpportunities(ctx, campaign, runID, opps); err != nil {
		return nil, fmt.Errorf("failed to save opportunities: %w", err)
	}

	return &RunStats{
		RunID:         runID,
		Subjects:      len(subjects),
		Matches:       len(matches),
		Opportunities: len(opps),
	}, nil
}

// ListOpportunities exposes the stored opportunity set for review surfaces
func (s *Service) ListOpportunities(ctx context.Context, filter domain.OpportunityFilter) (*domain.OpportunityPage, error) {
	if filter.CampaignType != nil && !domain.IsKnownCampaign(*filter.CampaignType) {
		return nil, apperr.Validation(fmt.Sprintf("unknown campaign %q", *filter.CampaignType))
	}
	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", *filter.Status))
	}
	return s.store.ListOpportunities(ctx, filter)
}

// GetCampaignStats returns aggregate opportunity counts for a campaign
func (s *Service) GetCampaignStats(ctx context.Context, campaign domain.CampaignType) (*domain.CampaignStats, error) {
	if !domain.IsKnownCampaign(campaign) {
		return nil, apperr.Validation(fmt.Sprintf("unknown campaign %q", campaign))
	}
	return s.store.GetCampaignStats(ctx, campaign)
}

// UpdateStatus transitions an opportunity through its review lifecycle
func (s *Service) UpdateStatus(ctx context.Context, key domain.Key, to domain.Status, message string) (*domain.Opportunity, error) {
	if !domain.IsKnownCampaign(key.CampaignType) {
		return nil, apperr.Validation(fmt.Sprintf("unknown campaign %q", key.CampaignType))
	}
	if !domain.ValidStatus(to) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", to))
	}
	return s.store.UpdateOpportunityStatus(ctx, key, to, message)
}
