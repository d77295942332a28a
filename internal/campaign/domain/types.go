package domain

import (
	"strings"
	"time"

	"caregaps_backend/platform/phone"
)

// Person is a patient record from the warehouse
type Person struct {
	ID           string
	MRN          string
	FirstName    string
	LastName     string
	BirthDate    time.Time
	Sex          string
	HomePhone    string
	MobilePhone  string
	AddressLine  string
	ZIP          string
	PortalActive bool
}

// FullName returns the person's display name
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// HasContact reports whether the person has at least one phone number
// that normalizes to something usable.
func (p Person) HasContact(region string) bool {
	return phone.NormalizeE164(p.HomePhone, region) != "" ||
		phone.NormalizeE164(p.MobilePhone, region) != ""
}

// AddressKey returns a comparable household address key, or "" when
// the address is too incomplete to compare.
func (p Person) AddressKey() string {
	line := strings.ToUpper(strings.TrimSpace(p.AddressLine))
	zip := strings.TrimSpace(p.ZIP)
	if line == "" || zip == "" {
		return ""
	}
	return line + "|" + zip
}

// Appointment is a scheduled visit from the warehouse
type Appointment struct {
	ID        string
	PersonID  string
	StartTime time.Time
	Status    string
	Location  string
	AccountID string
}

// Cancelled reports whether the appointment will not happen
func (a Appointment) Cancelled() bool {
	s := strings.ToLower(a.Status)
	return s == "cancelled" || s == "canceled" || s == "no_show"
}

// GuardianLink ties a person to a listed guardian with contact details
type GuardianLink struct {
	PersonID      string
	GuardianName  string
	HomePhone     string
	MobilePhone   string
	LegalGuardian bool
	Ordinal       int
}

// GuardianTuple is the normalized identity of a guardian, used to
// decide that two patients share the same primary guardian.
type GuardianTuple struct {
	Name        string
	HomePhone   string
	MobilePhone string
}

// Tuple normalizes the link into a comparable guardian identity
func (g GuardianLink) Tuple(region string) GuardianTuple {
	return GuardianTuple{
		Name:        strings.ToLower(strings.TrimSpace(g.GuardianName)),
		HomePhone:   phone.NormalizeE164(g.HomePhone, region),
		MobilePhone: phone.NormalizeE164(g.MobilePhone, region),
	}
}

// BillingAccount groups patients under one guarantor
type BillingAccount struct {
	ID            string
	GuarantorName string
}

// AccountMember is a patient appearing on a billing account
type AccountMember struct {
	AccountID string
	PersonID  string
}

// DueStatus is a patient's current standing on a care topic
type DueStatus struct {
	PersonID string
	TopicID  string
	State    DueState
}

// DueSnapshot is a historical due-status row with its capture time
type DueSnapshot struct {
	PersonID    string
	TopicID     string
	State       DueState
	CompletedAt *time.Time
	SnapshotAt  time.Time
}

// Subject is a patient with a qualifying upcoming appointment, the
// anchor of a household match.
type Subject struct {
	PersonID      string
	AppointmentID string
	StartTime     time.Time
	Location      string
	AccountID     string
}

// SubjectIndex answers membership queries against the resolved subject set
type SubjectIndex map[string]Subject

// NewSubjectIndex builds an index keyed by person ID
func NewSubjectIndex(subjects []Subject) SubjectIndex {
	idx := make(SubjectIndex, len(subjects))
	for _, s := range subjects {
		idx[s.PersonID] = s
	}
	return idx
}

// Has reports whether the person is a resolved subject
func (idx SubjectIndex) Has(personID string) bool {
	_, ok := idx[personID]
	return ok
}
