package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/platform/apperr"
	"caregaps_backend/platform/logger"
)

type fakeConfig struct{}

func (fakeConfig) GetWarehouseSchema() string { return "warehouse" }
func (fakeConfig) GetWindowDays() int         { return 7 }
func (fakeConfig) GetTopicIDs(campaign string) []string {
	if campaign == "FLU_VACCINE" {
		return []string{"FLU", "INFLUENZA", "FLU_VACCINE"}
	}
	return []string{campaign}
}
func (fakeConfig) GetMaxCandidateAgeYears() int    { return 18 }
func (fakeConfig) GetNeverCompleterAgeMonths() int { return 24 }
func (fakeConfig) GetEligibleDueStates() []string {
	return []string{"due_soon", "due_now", "overdue"}
}
func (fakeConfig) GetGuarantorDenylist() []string {
	return []string{"COUNTY", "FOSTER", "STATE OF"}
}
func (fakeConfig) GetDiagnosisCodePrefix() string { return "J45" }
func (fakeConfig) GetPhoneRegion() string         { return "US" }
func (fakeConfig) GetActiveCampaigns() []string   { return []string{"FLU_VACCINE"} }

type fakeSource struct {
	appointments []domain.Appointment
	persons      map[string]domain.Person
	guardians    []domain.GuardianLink
	accounts     map[string]domain.BillingAccount
	members      []domain.AccountMember
	statuses     []domain.DueStatus
	history      []domain.DueSnapshot
	asthma       map[string]bool
}

func (f *fakeSource) ListUpcomingAppointments(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range f.appointments {
		if a.Cancelled() || a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeSource) GetPersons(_ context.Context, ids []string) (map[string]domain.Person, error) {
	out := make(map[string]domain.Person)
	for _, id := range ids {
		if p, ok := f.persons[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeSource) ListGuardianLinks(_ context.Context, ids []string) ([]domain.GuardianLink, error) {
	set := toSet(ids)
	var out []domain.GuardianLink
	for _, l := range f.guardians {
		if set[l.PersonID] && l.LegalGuardian && l.Ordinal == 1 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) ListGuardianLinksByNames(_ context.Context, names []string) ([]domain.GuardianLink, error) {
	set := toSet(names)
	var out []domain.GuardianLink
	for _, l := range f.guardians {
		if set[strings.ToLower(strings.TrimSpace(l.GuardianName))] && l.LegalGuardian && l.Ordinal == 1 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) GetBillingAccounts(_ context.Context, ids []string) (map[string]domain.BillingAccount, error) {
	out := make(map[string]domain.BillingAccount)
	for _, id := range ids {
		if a, ok := f.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeSource) ListAccountMembers(_ context.Context, ids []string) ([]domain.AccountMember, error) {
	set := toSet(ids)
	var out []domain.AccountMember
	for _, m := range f.members {
		if set[m.AccountID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) ListDueStatuses(_ context.Context, personIDs, topicIDs []string) ([]domain.DueStatus, error) {
	people, topics := toSet(personIDs), toSet(topicIDs)
	var out []domain.DueStatus
	for _, s := range f.statuses {
		if people[s.PersonID] && topics[strings.ToUpper(s.TopicID)] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) ListDueHistory(_ context.Context, personIDs, topicIDs []string) ([]domain.DueSnapshot, error) {
	people, topics := toSet(personIDs), toSet(topicIDs)
	var out []domain.DueSnapshot
	for _, s := range f.history {
		if people[s.PersonID] && topics[strings.ToUpper(s.TopicID)] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) ListDiagnosisMatches(_ context.Context, personIDs []string, _ string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range personIDs {
		if f.asthma[id] {
			out[id] = true
		}
	}
	return out, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

type fakeStore struct {
	locked bool
	saved  []domain.Opportunity
	runs   []domain.RunRecord
}

func (f *fakeStore) AcquireRunLock(_ context.Context, campaign domain.CampaignType) (func(), error) {
	if f.locked {
		return nil, apperr.Conflict("run in progress")
	}
	f.locked = true
	return func() { f.locked = false }, nil
}

func (f *fakeStore) SaveOpportunities(_ context.Context, _ domain.CampaignType, _ string, opps []domain.Opportunity) error {
	f.saved = opps
	return nil
}

func (f *fakeStore) RecordRun(_ context.Context, run domain.RunRecord) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) ListOpportunities(_ context.Context, _ domain.OpportunityFilter) (*domain.OpportunityPage, error) {
	return &domain.OpportunityPage{Items: f.saved, Total: len(f.saved)}, nil
}

func (f *fakeStore) GetCampaignStats(_ context.Context, campaign domain.CampaignType) (*domain.CampaignStats, error) {
	return &domain.CampaignStats{CampaignType: campaign, Total: len(f.saved)}, nil
}

func (f *fakeStore) UpdateOpportunityStatus(_ context.Context, _ domain.Key, _ domain.Status, _ string) (*domain.Opportunity, error) {
	return nil, apperr.NotFound("opportunity not found")
}

var testNow = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, source *fakeSource, store *fakeStore) *Service {
	t.Helper()
	svc, err := New(source, store, fakeConfig{}, logger.New("development"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	svc.now = func() time.Time { return testNow }
	return svc
}

func appt(id, personID, accountID string, start time.Time) domain.Appointment {
	return domain.Appointment{ID: id, PersonID: personID, Status: "scheduled", Location: "Main Clinic", AccountID: accountID, StartTime: start}
}

// baseSource builds a household: subject p-sub (age 8) with an
// appointment in window, sibling p-sib (age 5) sharing guardian and
// billing account, both flu-due.
func baseSource() *fakeSource {
	apptTime := time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC)
	return &fakeSource{
		appointments: []domain.Appointment{
			appt("a1", "p-sub", "acct1", apptTime),
		},
		persons: map[string]domain.Person{
			"p-sub": {ID: "p-sub", MRN: "MRN-SUB", FirstName: "Leo", LastName: "Ward",
				BirthDate: time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC),
				AddressLine: "12 Elm St", ZIP: "43004", MobilePhone: "+16145550142"},
			"p-sib": {ID: "p-sib", MRN: "MRN-SIB", FirstName: "Mia", LastName: "Ward",
				BirthDate: time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
				AddressLine: "12 Elm St", ZIP: "43004", MobilePhone: "+16145550142"},
		},
		guardians: []domain.GuardianLink{
			{PersonID: "p-sub", GuardianName: "Ward, Dana", MobilePhone: "+16145550142", LegalGuardian: true, Ordinal: 1},
			{PersonID: "p-sib", GuardianName: "Ward, Dana", MobilePhone: "+16145550142", LegalGuardian: true, Ordinal: 1},
		},
		accounts: map[string]domain.BillingAccount{
			"acct1": {ID: "acct1", GuarantorName: "Ward, Dana"},
		},
		members: []domain.AccountMember{
			{AccountID: "acct1", PersonID: "p-sub"},
			{AccountID: "acct1", PersonID: "p-sib"},
		},
		statuses: []domain.DueStatus{
			{PersonID: "p-sib", TopicID: "FLU", State: domain.DueStateOverdue},
		},
		history: []domain.DueSnapshot{
			{PersonID: "p-sib", TopicID: "FLU", State: domain.DueStateCompleted,
				CompletedAt: timePtr(time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC)),
				SnapshotAt:  time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC)},
		},
		asthma: map[string]bool{},
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func findOpp(opps []domain.Opportunity, candidateMRN string) (domain.Opportunity, bool) {
	for _, o := range opps {
		if o.CandidateMRN == candidateMRN {
			return o, true
		}
	}
	return domain.Opportunity{}, false
}

func TestRunGeneratesSiblingOpportunity(t *testing.T) {
	source := baseSource()
	store := &fakeStore{}
	svc := newTestService(t, source, store)

	stats, err := svc.Run(context.Background(), domain.CampaignFluVaccine)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Subjects != 1 {
		t.Errorf("Subjects = %d, want 1", stats.Subjects)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("expected sibling opportunity")
	}
	if sib.Confidence != domain.TierHigh {
		t.Errorf("Confidence = %s, want HIGH (guardian match beats account match)", sib.Confidence)
	}
	if sib.MatchRank != 1 {
		t.Errorf("MatchRank = %d, want 1", sib.MatchRank)
	}
	if sib.Role != domain.RoleSharedAddress {
		t.Errorf("Role = %s, want shared address", sib.Role)
	}
	if sib.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", sib.Status)
	}
	if sib.SubjectMRN != "MRN-SUB" {
		t.Errorf("SubjectMRN = %s, want MRN-SUB", sib.SubjectMRN)
	}
	if sib.DueStatus != domain.DueStateOverdue {
		t.Errorf("DueStatus = %s, want overdue", sib.DueStatus)
	}
	if sib.Context.LastCompletion != "2023-10-15" {
		t.Errorf("Context.LastCompletion = %s, want 2023-10-15", sib.Context.LastCompletion)
	}
}

func TestRunExcludesCandidateWithOwnAppointment(t *testing.T) {
	source := baseSource()
	// The sibling now has their own qualifying appointment and becomes
	// a subject in their own right.
	source.appointments = append(source.appointments,
		appt("a2", "p-sib", "acct1", time.Date(2024, 10, 4, 9, 0, 0, 0, time.UTC)))
	source.statuses = append(source.statuses,
		domain.DueStatus{PersonID: "p-sub", TopicID: "FLU", State: domain.DueStateDueNow})
	source.history = append(source.history,
		domain.DueSnapshot{PersonID: "p-sub", TopicID: "FLU", State: domain.DueStateCompleted,
			CompletedAt: timePtr(time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)),
			SnapshotAt:  time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)})

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Neither child may appear as a household candidate on the other's
	// visit, but each may appear as self on their own.
	for _, o := range store.saved {
		if o.CandidateMRN != o.SubjectMRN {
			t.Errorf("unexpected cross-household opportunity %s -> %s", o.CandidateMRN, o.SubjectMRN)
		}
		if o.Role != domain.RoleSelf {
			t.Errorf("Role = %s, want self", o.Role)
		}
	}
}

func TestRunSelfOpportunity(t *testing.T) {
	source := baseSource()
	// Subject is themselves flu-due, with a completion on record.
	source.statuses = append(source.statuses,
		domain.DueStatus{PersonID: "p-sub", TopicID: "FLU", State: domain.DueStateDueNow})
	source.history = append(source.history,
		domain.DueSnapshot{PersonID: "p-sub", TopicID: "FLU", State: domain.DueStateCompleted,
			CompletedAt: timePtr(time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)),
			SnapshotAt:  time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)})

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	self, ok := findOpp(store.saved, "MRN-SUB")
	if !ok {
		t.Fatal("expected self opportunity for flu-due subject")
	}
	if self.Role != domain.RoleSelf {
		t.Errorf("Role = %s, want self", self.Role)
	}
	if self.SubjectMRN != "MRN-SUB" {
		t.Errorf("SubjectMRN = %s, want MRN-SUB", self.SubjectMRN)
	}
}

func TestRunNeverCompleterExcluded(t *testing.T) {
	source := baseSource()
	source.history = nil // sibling is nearly six with no completion on record

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok := findOpp(store.saved, "MRN-SIB"); ok {
		t.Error("never-completer over threshold must be excluded")
	}
}

func TestRunYoungNeverCompleterIncluded(t *testing.T) {
	source := baseSource()
	source.history = nil
	// An infant has never completed simply because they are new.
	p := source.persons["p-sib"]
	p.BirthDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	source.persons["p-sib"] = p

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("young never-completer should remain eligible")
	}
	if sib.LastCompletion != nil {
		t.Error("LastCompletion should be nil for a never-completer")
	}
	if sib.Context.LastCompletion != "never" {
		t.Errorf("Context.LastCompletion = %q, want never", sib.Context.LastCompletion)
	}
}

func TestRunLatestCompletionWins(t *testing.T) {
	source := baseSource()
	source.history = append(source.history,
		domain.DueSnapshot{PersonID: "p-sib", TopicID: "INFLUENZA", State: domain.DueStateCompleted,
			CompletedAt: timePtr(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
			SnapshotAt:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		domain.DueSnapshot{PersonID: "p-sib", TopicID: "FLU", State: domain.DueStateCompleted,
			CompletedAt: timePtr(time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)),
			SnapshotAt:  time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)})

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("expected sibling opportunity")
	}
	if sib.Context.LastCompletion != "2024-01-05" {
		t.Errorf("Context.LastCompletion = %s, want 2024-01-05 (latest across alias rows)", sib.Context.LastCompletion)
	}
}

func TestRunDenylistedGuarantorExcludesSubject(t *testing.T) {
	source := baseSource()
	source.accounts["acct1"] = domain.BillingAccount{
		ID: "acct1", GuarantorName: "FRANKLIN COUNTY CHILDREN SERVICES",
	}

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	stats, err := svc.Run(context.Background(), domain.CampaignFluVaccine)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Opportunities != 0 {
		t.Errorf("Opportunities = %d, want 0 for denylisted guarantor", stats.Opportunities)
	}
}

func TestRunDenylistedGuardianNameExcludedFromGuardianTier(t *testing.T) {
	source := baseSource()
	// Both children share an institutional legal guardian while the
	// billing guarantor stays clean. Drop the sibling from the account
	// so the guardian link is the only evidence.
	for i := range source.guardians {
		source.guardians[i].GuardianName = "FRANKLIN COUNTY CHILDREN SERVICES"
	}
	source.members = source.members[:1]

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok := findOpp(store.saved, "MRN-SIB"); ok {
		t.Error("an institutional guardian name must not link a household")
	}
}

func TestRunOwnAppointmentExclusionSurvivesDenylistedAccount(t *testing.T) {
	source := baseSource()
	// The sibling has their own qualifying appointment, billed to an
	// institutional account. They still count as already coming in.
	source.appointments = append(source.appointments,
		appt("a2", "p-sib", "acct2", time.Date(2024, 10, 4, 9, 0, 0, 0, time.UTC)))
	source.accounts["acct2"] = domain.BillingAccount{
		ID: "acct2", GuarantorName: "STATE OF OHIO CUSTODY",
	}

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok := findOpp(store.saved, "MRN-SIB"); ok {
		t.Error("candidate with their own qualifying appointment must not piggyback")
	}
}

func TestRunAccountTiers(t *testing.T) {
	source := baseSource()
	// Break the guardian link so only the billing account connects them.
	source.guardians = source.guardians[:1]

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("expected account-tier opportunity")
	}
	if sib.Confidence != domain.TierMedium {
		t.Errorf("Confidence = %s, want MEDIUM for shared address", sib.Confidence)
	}

	// Different address downgrades to LOW.
	p := source.persons["p-sib"]
	p.AddressLine = "99 Oak Ave"
	source.persons["p-sib"] = p

	store = &fakeStore{}
	svc = newTestService(t, source, store)
	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok = findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("expected account-tier opportunity")
	}
	if sib.Confidence != domain.TierLow {
		t.Errorf("Confidence = %s, want LOW for differing address", sib.Confidence)
	}
	if sib.MatchRank != 3 {
		t.Errorf("MatchRank = %d, want 3", sib.MatchRank)
	}
}

func TestRunExcludesAdultCandidatesOnAccountTiers(t *testing.T) {
	source := baseSource()
	// Account membership is the only link; the sibling is 20.
	source.guardians = source.guardians[:1]
	p := source.persons["p-sib"]
	p.BirthDate = time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC)
	source.persons["p-sib"] = p

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok := findOpp(store.saved, "MRN-SIB"); ok {
		t.Error("account-tier candidates at or over the age ceiling must be excluded")
	}
}

func TestRunGuardianMatchNotSubjectToAgeCeiling(t *testing.T) {
	source := baseSource()
	// A 19-year-old sibling still sharing the legal guardian. The age
	// ceiling guards the weaker account tiers only.
	p := source.persons["p-sib"]
	p.BirthDate = time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	source.persons["p-sib"] = p

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("guardian-linked candidate over the account-tier age ceiling should surface")
	}
	if sib.Confidence != domain.TierHigh {
		t.Errorf("Confidence = %s, want HIGH", sib.Confidence)
	}
}

func TestRunTopicAliasFolding(t *testing.T) {
	source := baseSource()
	// An alias row with a more urgent state than the canonical row.
	source.statuses = []domain.DueStatus{
		{PersonID: "p-sib", TopicID: "FLU", State: domain.DueStateDueSoon},
		{PersonID: "p-sib", TopicID: "INFLUENZA", State: domain.DueStateOverdue},
		{PersonID: "p-sib", TopicID: "FLU_VACCINE", State: domain.DueStateNotDue},
	}

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sib, ok := findOpp(store.saved, "MRN-SIB")
	if !ok {
		t.Fatal("expected opportunity after alias folding")
	}
	if sib.DueStatus != domain.DueStateOverdue {
		t.Errorf("DueStatus = %s, want overdue (most urgent alias wins)", sib.DueStatus)
	}
}

func TestRunNotDueCandidateExcluded(t *testing.T) {
	source := baseSource()
	source.statuses = []domain.DueStatus{
		{PersonID: "p-sib", TopicID: "FLU", State: domain.DueStateNotDue},
	}

	store := &fakeStore{}
	svc := newTestService(t, source, store)

	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.saved) != 0 {
		t.Errorf("got %d opportunities for a not-due candidate, want 0", len(store.saved))
	}
}

func TestRunDeterministicOutput(t *testing.T) {
	source := baseSource()
	// Add a second household to make ordering meaningful.
	apptTime := time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC)
	source.appointments = append(source.appointments, appt("a9", "p-sub2", "acct2", apptTime))
	source.persons["p-sub2"] = domain.Person{ID: "p-sub2", MRN: "MRN-SUB2", FirstName: "Ava", LastName: "Cole",
		BirthDate: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), AddressLine: "5 Pine Rd", ZIP: "43004"}
	source.persons["p-sib2"] = domain.Person{ID: "p-sib2", MRN: "MRN-SIB2", FirstName: "Eli", LastName: "Cole",
		BirthDate: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), AddressLine: "5 Pine Rd", ZIP: "43004"}
	source.accounts["acct2"] = domain.BillingAccount{ID: "acct2", GuarantorName: "Cole, Sam"}
	source.members = append(source.members,
		domain.AccountMember{AccountID: "acct2", PersonID: "p-sub2"},
		domain.AccountMember{AccountID: "acct2", PersonID: "p-sib2"})
	source.statuses = append(source.statuses,
		domain.DueStatus{PersonID: "p-sib2", TopicID: "FLU", State: domain.DueStateDueNow})
	source.history = append(source.history,
		domain.DueSnapshot{PersonID: "p-sib2", TopicID: "FLU", State: domain.DueStateCompleted,
			CompletedAt: timePtr(time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)),
			SnapshotAt:  time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)})

	store := &fakeStore{}
	svc := newTestService(t, source, store)
	if _, err := svc.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	first := store.saved

	store2 := &fakeStore{}
	svc2 := newTestService(t, source, store2)
	if _, err := svc2.Run(context.Background(), domain.CampaignFluVaccine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second := store2.saved

	if len(first) != len(second) {
		t.Fatalf("run sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].CandidateMRN != second[i].CandidateMRN || first[i].SubjectMRN != second[i].SubjectMRN {
			t.Errorf("order differs at %d: %s/%s vs %s/%s", i,
				first[i].CandidateMRN, first[i].SubjectMRN,
				second[i].CandidateMRN, second[i].SubjectMRN)
		}
	}

	// Earlier appointment sorts first.
	if len(first) >= 2 && first[0].AppointmentDate.After(first[1].AppointmentDate) {
		t.Error("opportunities not ordered by appointment date")
	}
}

func TestRunUnknownCampaignRejected(t *testing.T) {
	svc := newTestService(t, baseSource(), &fakeStore{})

	_, err := svc.Run(context.Background(), "WELLNESS_CHECK")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("Run(unknown campaign) error = %v, want validation error", err)
	}
}

func TestRunRecordsBookkeeping(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, baseSource(), store)

	stats, err := svc.Run(context.Background(), domain.CampaignFluVaccine)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.runs) != 1 {
		t.Fatalf("got %d run records, want 1", len(store.runs))
	}
	run := store.runs[0]
	if run.Status != "completed" {
		t.Errorf("run status = %s, want completed", run.Status)
	}
	if run.ID != stats.RunID {
		t.Errorf("run ID mismatch: %s vs %s", run.ID, stats.RunID)
	}
	if run.Opportunities != stats.Opportunities {
		t.Errorf("run opportunities = %d, want %d", run.Opportunities, stats.Opportunities)
	}
}

func TestNewRejectsBadEngineConfig(t *testing.T) {
	_, err := New(&fakeSource{}, &fakeStore{}, badDueStateConfig{}, logger.New("development"))
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("New() error = %v, want validation error", err)
	}
}

type badDueStateConfig struct{ fakeConfig }

func (badDueStateConfig) GetEligibleDueStates() []string {
	return []string{"completed"}
}
