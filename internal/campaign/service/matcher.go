package service

import (
	"context"
	"sort"
	"time"

	"caregaps_backend/internal/campaign/domain"
)

// matchHouseholds finds household candidates for each subject across
// three evidence tiers. HIGH links patients through a shared primary
// guardian identity. MEDIUM and LOW link patients through the
// subject's billing account, with a shared address upgrading the
// match to MEDIUM. Subjects whose guarantor matches the denylist are
// excluded entirely: an institutional account is not a household.
func (s *Service) matchHouseholds(ctx context.Context, subjects []domain.Subject, now time.Time) ([]domain.CandidateMatch, map[string]domain.Person, error) {
	if len(subjects) == 0 {
		return nil, map[string]domain.Person{}, nil
	}

	accountIDs := make([]string, 0, len(subjects))
	seenAccounts := make(map[string]bool)
	for _, sub := range subjects {
		if !seenAccounts[sub.AccountID] {
			seenAccounts[sub.AccountID] = true
			accountIDs = append(accountIDs, sub.AccountID)
		}
	}

	accounts, err := s.source.GetBillingAccounts(ctx, accountIDs)
	if err != nil {
		return nil, nil, err
	}

	kept := make([]domain.Subject, 0, len(subjects))
	for _, sub := range subjects {
		if acct, ok := accounts[sub.AccountID]; ok && s.denylist.Blocked(acct.GuarantorName) {
			continue
		}
		kept = append(kept, sub)
	}
	if len(kept) == 0 {
		return nil, map[string]domain.Person{}, nil
	}

	// The own-appointment exclusion covers every resolved subject, not
	// just the ones that survive the denylist. A candidate already
	// coming in stays excluded even when their own visit bills to an
	// institutional account.
	subjectIdx := domain.NewSubjectIndex(subjects)

	guardianMatches, err := s.matchGuardianTier(ctx, kept)
	if err != nil {
		return nil, nil, err
	}

	accountMatches, candidateIDs, err := s.collectAccountCandidates(ctx, kept)
	if err != nil {
		return nil, nil, err
	}

	// Load person records for everyone involved; the account tiers need
	// age and address, and downstream stages need the rest.
	allIDs := make(map[string]bool)
	for _, sub := range kept {
		allIDs[sub.PersonID] = true
	}
	for _, m := range guardianMatches {
		allIDs[m.CandidateID] = true
	}
	for _, id := range candidateIDs {
		allIDs[id] = true
	}
	idList := make([]string, 0, len(allIDs))
	for id := range allIDs {
		idList = append(idList, id)
	}
	sort.Strings(idList)

	persons, err := s.source.GetPersons(ctx, idList)
	if err != nil {
		return nil, nil, err
	}

	var matches []domain.CandidateMatch
	maxAge := s.cfg.GetMaxCandidateAgeYears()

	admit := func(m domain.CandidateMatch) {
		if _, ok := persons[m.CandidateID]; !ok {
			return
		}
		// A candidate with their own qualifying appointment gets their
		// own outreach anchor, unless the candidate is the subject.
		if m.CandidateID != m.SubjectID && subjectIdx.Has(m.CandidateID) {
			return
		}
		matches = append(matches, m)
	}

	for _, m := range guardianMatches {
		admit(m)
	}

	for _, am := range accountMatches {
		subject, ok := persons[am.SubjectID]
		if !ok {
			continue
		}
		candidate, ok := persons[am.CandidateID]
		if !ok {
			continue
		}
		// Account membership alone is weak evidence, so the age ceiling
		// applies here. A guardian-linked match carries regardless of age.
		if domain.AgeAt(candidate.BirthDate, now).Years >= maxAge {
			continue
		}
		tier := domain.TierLow
		if sk, ck := subject.AddressKey(), candidate.AddressKey(); sk != "" && sk == ck {
			tier = domain.TierMedium
		}
		admit(domain.CandidateMatch{SubjectID: am.SubjectID, CandidateID: am.CandidateID, Tier: tier})
	}

	return domain.DedupeMatches(matches), persons, nil
}

// matchGuardianTier links subjects to candidates sharing the same
// normalized primary guardian tuple. The SQL prefilter matches on
// guardian name only; the full tuple comparison happens here.
func (s *Service) matchGuardianTier(ctx context.Context, subjects []domain.Subject) ([]domain.CandidateMatch, error) {
	subjectIDs := make([]string, len(subjects))
	for i, sub := range subjects {
		subjectIDs[i] = sub.PersonID
	}

	subjectLinks, err := s.source.ListGuardianLinks(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}
	if len(subjectLinks) == 0 {
		return nil, nil
	}

	region := s.cfg.GetPhoneRegion()

	subjectsByTuple := make(map[domain.GuardianTuple][]string)
	nameSet := make(map[string]bool)
	for _, link := range subjectLinks {
		tuple := link.Tuple(region)
		if tuple.Name == "" {
			continue
		}
		// An institutional legal guardian (county custody, foster
		// agency) is not evidence of a shared household.
		if s.denylist.Blocked(link.GuardianName) {
			continue
		}
		subjectsByTuple[tuple] = append(subjectsByTuple[tuple], link.PersonID)
		nameSet[tuple.Name] = true
	}
	if len(nameSet) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	candidateLinks, err := s.source.ListGuardianLinksByNames(ctx, names)
	if err != nil {
		return nil, err
	}

	var matches []domain.CandidateMatch
	for _, link := range candidateLinks {
		if s.denylist.Blocked(link.GuardianName) {
			continue
		}
		tuple := link.Tuple(region)
		for _, subjectID := range subjectsByTuple[tuple] {
			if link.PersonID == subjectID {
				continue
			}
			matches = append(matches, domain.CandidateMatch{
				SubjectID:   subjectID,
				CandidateID: link.PersonID,
				Tier:        domain.TierHigh,
			})
		}
	}

	return matches, nil
}

type accountPair struct {
	SubjectID   string
	CandidateID string
}

// collectAccountCandidates pairs each subject with every patient that
// appears on the subject's billing account. The tier is decided later
// once person records are loaded.
func (s *Service) collectAccountCandidates(ctx context.Context, subjects []domain.Subject) ([]accountPair, []string, error) {
	accountIDs := make([]string, 0, len(subjects))
	subjectsByAccount := make(map[string][]string)
	for _, sub := range subjects {
		if len(subjectsByAccount[sub.AccountID]) == 0 {
			accountIDs = append(accountIDs, sub.AccountID)
		}
		subjectsByAccount[sub.AccountID] = append(subjectsByAccount[sub.AccountID], sub.PersonID)
	}

	members, err := s.source.ListAccountMembers(ctx, accountIDs)
	if err != nil {
		return nil, nil, err
	}

	var pairs []accountPair
	candidateSet := make(map[string]bool)
	for _, m := range members {
		for _, subjectID := range subjectsByAccount[m.AccountID] {
			pairs = append(pairs, accountPair{SubjectID: subjectID, CandidateID: m.PersonID})
			candidateSet[m.PersonID] = true
		}
	}

	candidateIDs := make([]string, 0, len(candidateSet))
	for id := range candidateSet {
		candidateIDs = append(candidateIDs, id)
	}
	sort.Strings(candidateIDs)

	return pairs, candidateIDs, nil
}
