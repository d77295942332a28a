package domain

import (
	"sort"
	"time"
)

// Opportunity is a generated outreach record: a household candidate
// who could piggyback on a subject's upcoming visit.
type Opportunity struct {
	CampaignType  CampaignType
	CandidateMRN  string
	SubjectMRN    string
	CandidateID   string
	SubjectID     string
	CandidateName string
	SubjectName   string

	Confidence Tier
	MatchRank  int
	Role       Role

	AppointmentDate     time.Time
	AppointmentLocation string

	DueStatus      DueState
	LastCompletion *time.Time

	AgeYears  int
	AgeMonths int

	HasAsthma    bool
	HasContact   bool
	PortalActive bool
	HomePhone    string
	MobilePhone  string

	Context ContextPayload

	Status  Status
	Message string
}

// ContextPayload is the denormalized context stored with each
// opportunity for downstream message generation.
type ContextPayload struct {
	CandidateName   string `json:"candidateName"`
	LastCompletion  string `json:"lastCompletion"`
	ClinicalFlag    bool   `json:"clinicalFlag"`
	Location        string `json:"location"`
	AppointmentDate string `json:"appointmentDate"`
	Role            string `json:"role"`
}

// Key identifies an opportunity within a campaign
type Key struct {
	CampaignType CampaignType
	CandidateMRN string
	SubjectMRN   string
}

// Key returns the opportunity's identity
func (o Opportunity) Key() Key {
	return Key{
		CampaignType: o.CampaignType,
		CandidateMRN: o.CandidateMRN,
		SubjectMRN:   o.SubjectMRN,
	}
}

// SortOpportunities orders opportunities deterministically: soonest
// appointment first, self before shared-address on the same visit, then
// candidate MRN, then subject MRN.
func SortOpportunities(opps []Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if !opps[i].AppointmentDate.Equal(opps[j].AppointmentDate) {
			return opps[i].AppointmentDate.Before(opps[j].AppointmentDate)
		}
		if opps[i].Role != opps[j].Role {
			return opps[i].Role == RoleSelf
		}
		if opps[i].CandidateMRN != opps[j].CandidateMRN {
			return opps[i].CandidateMRN < opps[j].CandidateMRN
		}
		return opps[i].SubjectMRN < opps[j].SubjectMRN
	})
}

// RunRecord captures the bookkeeping for one engine run
type RunRecord struct {
	ID            string
	CampaignType  CampaignType
	StartedAt     time.Time
	FinishedAt    time.Time
	Subjects      int
	Matches       int
	Opportunities int
	Status        string
	Error         string
}

// OpportunityFilter narrows opportunity listings
type OpportunityFilter struct {
	CampaignType *CampaignType
	Status       *Status
	CandidateMRN *string
	Location     *string
	Limit        int
	Offset       int
}

// OpportunityPage is one page of a filtered listing
type OpportunityPage struct {
	Items []Opportunity
	Total int
}

// CampaignStats aggregates opportunity counts by status for a campaign
type CampaignStats struct {
	CampaignType CampaignType
	Total        int
	ByStatus     map[Status]int
}
