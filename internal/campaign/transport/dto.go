// Package transport defines the request and response shapes of the
// campaign HTTP API.
package transport

import (
	"time"

	"caregaps_backend/internal/campaign/domain"
)

// ListOpportunitiesRequest is the query surface of the listing endpoint
type ListOpportunitiesRequest struct {
	Campaign     string `form:"campaign"`
	Status       string `form:"status"`
	CandidateMRN string `form:"candidate_mrn"`
	Location     string `form:"location"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

// Filter converts the request into a domain filter
func (r ListOpportunitiesRequest) Filter() domain.OpportunityFilter {
	filter := domain.OpportunityFilter{Limit: r.Limit, Offset: r.Offset}
	if r.Campaign != "" {
		c := domain.CampaignType(r.Campaign)
		filter.CampaignType = &c
	}
	if r.Status != "" {
		s := domain.Status(r.Status)
		filter.Status = &s
	}
	if r.CandidateMRN != "" {
		mrn := r.CandidateMRN
		filter.CandidateMRN = &mrn
	}
	if r.Location != "" {
		loc := r.Location
		filter.Location = &loc
	}
	return filter
}

// StatsRequest selects the campaign to aggregate
type StatsRequest struct {
	Campaign string `form:"campaign" validate:"required"`
}

// UpdateStatusRequest transitions an opportunity's lifecycle status.
// The (campaign, candidate MRN, subject MRN) triple identifies the
// opportunity.
type UpdateStatusRequest struct {
	Campaign     string `json:"campaign" validate:"required"`
	CandidateMRN string `json:"candidateMrn" validate:"required"`
	SubjectMRN   string `json:"subjectMrn" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=approved sent converted declined"`
	Message      string `json:"message" validate:"max=2000"`
}

// Key returns the opportunity identity named by the request
func (r UpdateStatusRequest) Key() domain.Key {
	return domain.Key{
		CampaignType: domain.CampaignType(r.Campaign),
		CandidateMRN: r.CandidateMRN,
		SubjectMRN:   r.SubjectMRN,
	}
}

// TriggerRunRequest enqueues an engine run for a campaign
type TriggerRunRequest struct {
	Campaign string `json:"campaign" validate:"required"`
}

// OpportunityResponse is the API projection of an opportunity
type OpportunityResponse struct {
	CampaignType  string `json:"campaignType"`
	CandidateMRN  string `json:"candidateMrn"`
	SubjectMRN    string `json:"subjectMrn"`
	CandidateName string `json:"candidateName"`
	SubjectName   string `json:"subjectName"`

	Confidence string `json:"confidence"`
	MatchRank  int    `json:"matchRank"`
	Role       string `json:"role"`

	AppointmentDate     string `json:"appointmentDate"`
	AppointmentLocation string `json:"appointmentLocation"`

	DueStatus      string  `json:"dueStatus"`
	LastCompletion *string `json:"lastCompletion"`

	AgeYears  int `json:"ageYears"`
	AgeMonths int `json:"ageMonths"`

	HasAsthma    bool `json:"hasAsthma"`
	HasContact   bool `json:"hasContact"`
	PortalActive bool `json:"portalActive"`

	Context domain.ContextPayload `json:"context"`

	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewOpportunityResponse projects a domain opportunity
func NewOpportunityResponse(o domain.Opportunity) OpportunityResponse {
	resp := OpportunityResponse{
		CampaignType:  string(o.CampaignType),
		CandidateMRN:  o.CandidateMRN,
		SubjectMRN:    o.SubjectMRN,
		CandidateName: o.CandidateName,
		SubjectName:   o.SubjectName,

		Confidence: string(o.Confidence),
		MatchRank:  o.MatchRank,
		Role:       string(o.Role),

		AppointmentDate:     o.AppointmentDate.Format(time.RFC3339),
		AppointmentLocation: o.AppointmentLocation,

		DueStatus: string(o.DueStatus),

		AgeYears:  o.AgeYears,
		AgeMonths: o.AgeMonths,

		HasAsthma:    o.HasAsthma,
		HasContact:   o.HasContact,
		PortalActive: o.PortalActive,

		Context: o.Context,

		Status:  string(o.Status),
		Message: o.Message,
	}
	if o.LastCompletion != nil {
		formatted := o.LastCompletion.Format("2006-01-02")
		resp.LastCompletion = &formatted
	}
	return resp
}

// ListOpportunitiesResponse is one page of opportunities
type ListOpportunitiesResponse struct {
	Items []OpportunityResponse `json:"items"`
	Total int                   `json:"total"`
}

// StatsResponse aggregates opportunity counts for a campaign
type StatsResponse struct {
	CampaignType string         `json:"campaignType"`
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
}

// NewStatsResponse projects domain campaign stats
func NewStatsResponse(stats domain.CampaignStats) StatsResponse {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	return StatsResponse{
		CampaignType: string(stats.CampaignType),
		Total:        stats.Total,
		ByStatus:     byStatus,
	}
}

// TriggerRunResponse acknowledges an enqueued run
type TriggerRunResponse struct {
	Campaign string `json:"campaign"`
	Enqueued bool   `json:"enqueued"`
}
