package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/platform/apperr"
)

const opportunityColumns = `
	campaign_type, candidate_mrn, subject_mrn, candidate_id, subject_id,
	candidate_name, subject_name, confidence, match_rank, role,
	appointment_date, appointment_location, due_status, last_completion,
	age_years, age_months, has_asthma, has_contact, portal_active,
	home_phone, mobile_phone, context, status, COALESCE(message, '')`

// SaveOpportunities replaces a campaign's opportunity set with the
// given run results. Existing rows keep their lifecycle status; rows
// not regenerated by this run are deleted.
func (r *Repository) SaveOpportunities(ctx context.Context, campaign domain.CampaignType, runID string, opps []domain.Opportunity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(`
			INSERT INTO campaign_opportunities (
				campaign_type, candidate_mrn, subject_mrn, candidate_id, subject_id,
				candidate_name, subject_name, confidence, match_rank, role,
				appointment_date, appointment_location, due_status, last_completion,
				age_years, age_months, has_asthma, has_contact, portal_active,
				home_phone, mobile_phone, context, status, last_run_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			          $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
			ON CONFLICT (campaign_type, candidate_mrn, subject_mrn) DO UPDATE SET
				candidate_id = EXCLUDED.candidate_id,
				subject_id = EXCLUDED.subject_id,
				candidate_name = EXCLUDED.candidate_name,
				subject_name = EXCLUDED.subject_name,
				confidence = EXCLUDED.confidence,
				match_rank = EXCLUDED.match_rank,
				role = EXCLUDED.role,
				appointment_date = EXCLUDED.appointment_date,
				appointment_location = EXCLUDED.appointment_location,
				due_status = EXCLUDED.due_status,
				last_completion = EXCLUDED.last_completion,
				age_years = EXCLUDED.age_years,
				age_months = EXCLUDED.age_months,
				has_asthma = EXCLUDED.has_asthma,
				has_contact = EXCLUDED.has_contact,
				portal_active = EXCLUDED.portal_active,
				home_phone = EXCLUDED.home_phone,
				mobile_phone = EXCLUDED.mobile_phone,
				context = EXCLUDED.context,
				last_run_id = EXCLUDED.last_run_id,
				updated_at = now()`,
			o.CampaignType, o.CandidateMRN, o.SubjectMRN, o.CandidateID, o.SubjectID,
			o.CandidateName, o.SubjectName, o.Confidence, o.MatchRank, o.Role,
			o.AppointmentDate, o.AppointmentLocation, o.DueStatus, o.LastCompletion,
			o.AgeYears, o.AgeMonths, o.HasAsthma, o.HasContact, o.PortalActive,
			o.HomePhone, o.MobilePhone, o.Context, o.Status, runID,
		)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert opportunity: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM campaign_opportunities
		WHERE campaign_type = $1 AND last_run_id <> $2`,
		campaign, runID,
	); err != nil {
		return fmt.Errorf("failed to delete stale opportunities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit opportunity save: %w", err)
	}

	return nil
}

// ListOpportunities returns a filtered, paginated opportunity listing
// ordered by appointment date then candidate and subject MRN.
func (r *Repository) ListOpportunities(ctx context.Context, filter domain.OpportunityFilter) (*domain.OpportunityPage, error) {
	var conditions []string
	var args []any

	addFilter := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.CampaignType != nil {
		addFilter("campaign_type = $%d", *filter.CampaignType)
	}
	if filter.Status != nil {
		addFilter("status = $%d", *filter.Status)
	}
	if filter.CandidateMRN != nil {
		addFilter("candidate_mrn = $%d", *filter.CandidateMRN)
	}
	if filter.Location != nil {
		addFilter("appointment_location = $%d", *filter.Location)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM campaign_opportunities " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count opportunities: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM campaign_opportunities
		%s
		ORDER BY appointment_date, candidate_mrn, subject_mrn
		LIMIT %d OFFSET %d`, opportunityColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var items []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read opportunities: %w", err)
	}

	return &domain.OpportunityPage{Items: items, Total: total}, nil
}

// GetCampaignStats returns opportunity counts by status for a campaign
func (r *Repository) GetCampaignStats(ctx context.Context, campaign domain.CampaignType) (*domain.CampaignStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM campaign_opportunities
		WHERE campaign_type = $1
		GROUP BY status`, campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.CampaignStats{
		CampaignType: campaign,
		ByStatus:     make(map[domain.Status]int),
	}
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan campaign stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read campaign stats: %w", err)
	}

	return stats, nil
}

// UpdateOpportunityStatus transitions an opportunity to a new lifecycle
// status. An optional message is stored alongside the transition.
// Invalid transitions return a conflict error.
func (r *Repository) UpdateOpportunityStatus(ctx context.Context, key domain.Key, to domain.Status, message string) (*domain.Opportunity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.Status
	err = tx.QueryRow(ctx, `
		SELECT status FROM campaign_opportunities
		WHERE campaign_type = $1 AND candidate_mrn = $2 AND subject_mrn = $3
		FOR UPDATE`,
		key.CampaignType, key.CandidateMRN, key.SubjectMRN,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("opportunity not found")
		}
		return nil, fmt.Errorf("failed to load opportunity for update: %w", err)
	}

	if !domain.CanTransition(current, to) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot transition opportunity from %s to %s", current, to))
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE campaign_opportunities
		SET status = $4, message = NULLIF($5, ''), updated_at = now()
		WHERE campaign_type = $1 AND candidate_mrn = $2 AND subject_mrn = $3
		RETURNING %s`, opportunityColumns),
		key.CampaignType, key.CandidateMRN, key.SubjectMRN, to, message,
	)

	updated, err := scanOpportunity(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	return &updated, nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var o domain.Opportunity
	err := row.Scan(
		&o.CampaignType, &o.CandidateMRN, &o.SubjectMRN, &o.CandidateID, &o.SubjectID,
		&o.CandidateName, &o.SubjectName, &o.Confidence, &o.MatchRank, &o.Role,
		&o.AppointmentDate, &o.AppointmentLocation, &o.DueStatus, &o.LastCompletion,
		&o.AgeYears, &o.AgeMonths, &o.HasAsthma, &o.HasContact, &o.PortalActive,
		&o.HomePhone, &o.MobilePhone, &o.Context, &o.Status, &o.Message,
	)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("failed to scan opportunity: %w", err)
	}
	return o, nil
}
