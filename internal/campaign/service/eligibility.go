package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"caregaps_backend/internal/campaign/domain"
)

// EligibleLink is a household match whose candidate passed the
// eligibility filter, enriched with everything the materializer needs.
type EligibleLink struct {
	Match          domain.CandidateMatch
	Candidate      domain.Person
	DueState       domain.DueState
	LastCompletion *time.Time
	Age            domain.Age
	HasAsthma      bool
	HasContact     bool
}

// filterEligible keeps matches whose candidate is actually due for the
// campaign topic. Topic aliases are folded together: the candidate's
// standing is the most urgent state across all alias rows. Candidates
// old enough that they should have completed at least once but never
// have are excluded; their records are more likely stale than due.
func (s *Service) filterEligible(ctx context.Context, campaign domain.CampaignType, matches []domain.CandidateMatch, persons map[string]domain.Person, now time.Time) ([]EligibleLink, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	candidateSet := make(map[string]bool)
	for _, m := range matches {
		candidateSet[m.CandidateID] = true
	}
	candidateIDs := make([]string, 0, len(candidateSet))
	for id := range candidateSet {
		candidateIDs = append(candidateIDs, id)
	}
	sort.Strings(candidateIDs)

	topics := make([]string, 0, len(s.cfg.GetTopicIDs(string(campaign))))
	for _, t := range s.cfg.GetTopicIDs(string(campaign)) {
		topics = append(topics, strings.ToUpper(strings.TrimSpace(t)))
	}

	var (
		statuses  []domain.DueStatus
		history   []domain.DueSnapshot
		diagnoses map[string]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statuses, err = s.source.ListDueStatuses(gctx, candidateIDs, topics)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.source.ListDueHistory(gctx, candidateIDs, topics)
		return err
	})
	g.Go(func() error {
		var err error
		diagnoses, err = s.source.ListDiagnosisMatches(gctx, candidateIDs, s.cfg.GetDiagnosisCodePrefix())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eligibleStates := make(map[domain.DueState]bool)
	for _, state := range s.cfg.GetEligibleDueStates() {
		eligibleStates[domain.DueState(state)] = true
	}

	// Fold alias rows to one state per candidate, most urgent
	// qualifying state first.
	dueByPerson := make(map[string]domain.DueState)
	for _, st := range statuses {
		if !eligibleStates[st.State] {
			continue
		}
		if current, ok := dueByPerson[st.PersonID]; !ok || domain.MoreUrgent(st.State, current) {
			dueByPerson[st.PersonID] = st.State
		}
	}

	completed := make([]domain.DueSnapshot, 0, len(history))
	for _, snap := range history {
		if snap.CompletedAt != nil {
			completed = append(completed, snap)
		}
	}
	lastCompletion := domain.LatestByKey(completed,
		func(s domain.DueSnapshot) string { return s.PersonID },
		func(s domain.DueSnapshot) time.Time { return *s.CompletedAt })

	region := s.cfg.GetPhoneRegion()
	neverCompleterMonths := s.cfg.GetNeverCompleterAgeMonths()

	var eligible []EligibleLink
	for _, m := range matches {
		state, due := dueByPerson[m.CandidateID]
		if !due {
			continue
		}
		candidate, ok := persons[m.CandidateID]
		if !ok {
			continue
		}

		age := domain.AgeAt(candidate.BirthDate, now)

		var completion *time.Time
		if snap, ok := lastCompletion[m.CandidateID]; ok {
			completion = snap.CompletedAt
		}

		if completion == nil && age.TotalMonths() > neverCompleterMonths {
			continue
		}

		eligible = append(eligible, EligibleLink{
			Match:          m,
			Candidate:      candidate,
			DueState:       state,
			LastCompletion: completion,
			Age:            age,
			HasAsthma:      diagnoses[m.CandidateID],
			HasContact:     candidate.HasContact(region),
		})
	}

	return eligible, nil
}
