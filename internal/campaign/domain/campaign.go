// Package domain defines the core types and pure logic for campaign
// opportunity generation: household matching, eligibility evaluation,
// and opportunity lifecycle.
package domain

// CampaignType identifies an outreach campaign
type CampaignType string

const (
	// CampaignFluVaccine is the seasonal influenza vaccination campaign
	CampaignFluVaccine CampaignType = "FLU_VACCINE"
	// CampaignLabPiggybacking is the routine lab work campaign
	CampaignLabPiggybacking CampaignType = "LAB_PIGGYBACKING"
	// CampaignDepressionScreening is the adolescent depression screening campaign
	CampaignDepressionScreening CampaignType = "DEPRESSION_SCREENING"
)

// KnownCampaigns lists every campaign the engine understands
var KnownCampaigns = []CampaignType{
	CampaignFluVaccine,
	CampaignLabPiggybacking,
	CampaignDepressionScreening,
}

// IsKnownCampaign reports whether t names a campaign the engine understands
func IsKnownCampaign(t CampaignType) bool {
	for _, c := range KnownCampaigns {
		if c == t {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an opportunity
type Status string

const (
	// StatusPending awaits clinical review
	StatusPending Status = "pending"
	// StatusApproved has been cleared for outreach
	StatusApproved Status = "approved"
	// StatusSent has had outreach delivered
	StatusSent Status = "sent"
	// StatusConverted resulted in a booked appointment
	StatusConverted Status = "converted"
	// StatusDeclined was rejected by reviewer or family
	StatusDeclined Status = "declined"
)

var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDeclined},
	StatusApproved: {StatusSent, StatusDeclined},
	StatusSent:     {StatusConverted, StatusDeclined},
}

// ValidStatus reports whether s is a recognized lifecycle status
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusSent, StatusConverted, StatusDeclined:
		return true
	}
	return false
}

// CanTransition reports whether an opportunity may move from one
// status to another. Terminal statuses allow no further moves.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DueState is a candidate's standing against a campaign topic
type DueState string

const (
	// DueStateNotDue means the topic is satisfied for now
	DueStateNotDue DueState = "not_due"
	// DueStateDueSoon means the topic comes due shortly
	DueStateDueSoon DueState = "due_soon"
	// DueStateDueNow means the topic is currently due
	DueStateDueNow DueState = "due_now"
	// DueStateOverdue means the topic is past due
	DueStateOverdue DueState = "overdue"
	// DueStateCompleted means the topic was recently completed
	DueStateCompleted DueState = "completed"
)

// urgency ranks due states so the most actionable one wins when a
// candidate carries several qualifying topic rows.
var urgency = map[DueState]int{
	DueStateOverdue: 3,
	DueStateDueNow:  2,
	DueStateDueSoon: 1,
}

// MoreUrgent reports whether a is strictly more urgent than b
func MoreUrgent(a, b DueState) bool {
	return urgency[a] > urgency[b]
}

// Role describes how the candidate relates to the subject's visit
type Role string

const (
	// RoleSelf means the candidate is the subject
	RoleSelf Role = "self"
	// RoleSharedAddress means the candidate is a household member riding
	// along on the subject's visit
	RoleSharedAddress Role = "shared address"
)
