package service

import (
	"caregaps_backend/internal/campaign/domain"
)

const dateLayout = "2006-01-02"

// materialize projects eligible links into opportunity records in
// deterministic order. Every generated opportunity starts pending;
// lifecycle advancement happens only through review.
func (s *Service) materialize(campaign domain.CampaignType, eligible []EligibleLink, subjects domain.SubjectIndex, persons map[string]domain.Person) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(eligible))

	for _, link := range eligible {
		subject, ok := subjects[link.Match.SubjectID]
		if !ok {
			continue
		}
		subjectPerson, ok := persons[link.Match.SubjectID]
		if !ok {
			continue
		}

		role := domain.RoleSharedAddress
		if link.Match.CandidateID == link.Match.SubjectID {
			role = domain.RoleSelf
		}

		lastCompletion := "never"
		if link.LastCompletion != nil {
			lastCompletion = link.LastCompletion.Format(dateLayout)
		}

		opps = append(opps, domain.Opportunity{
			CampaignType:  campaign,
			CandidateMRN:  link.Candidate.MRN,
			SubjectMRN:    subjectPerson.MRN,
			CandidateID:   link.Candidate.ID,
			SubjectID:     subjectPerson.ID,
			CandidateName: link.Candidate.FullName(),
			SubjectName:   subjectPerson.FullName(),

			Confidence: link.Match.Tier,
			MatchRank:  link.Match.Tier.Rank(),
			Role:       role,

			AppointmentDate:     subject.StartTime,
			AppointmentLocation: subject.Location,

			DueStatus:      link.DueState,
			LastCompletion: link.LastCompletion,

			AgeYears:  link.Age.Years,
			AgeMonths: link.Age.Months,

			HasAsthma:    link.HasAsthma,
			HasContact:   link.HasContact,
			PortalActive: link.Candidate.PortalActive,
			HomePhone:    link.Candidate.HomePhone,
			MobilePhone:  link.Candidate.MobilePhone,

			Context: domain.ContextPayload{
				CandidateName:   link.Candidate.FullName(),
				LastCompletion:  lastCompletion,
				ClinicalFlag:    link.HasAsthma,
				Location:        subject.Location,
				AppointmentDate: subject.StartTime.Format(dateLayout),
				Role:            string(role),
			},

			Status: domain.StatusPending,
		})
	}

	domain.SortOpportunities(opps)

	return opps
}
