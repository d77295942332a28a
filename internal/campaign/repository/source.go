package repository

import (
	"context"
	"fmt"
	"time"

	"caregaps_backend/internal/campaign/domain"
)

// ListUpcomingAppointments returns non-cancelled appointments starting
// within [from, to), ordered by start time then appointment ID so tie
// breaking downstream is deterministic.
func (r *Repository) ListUpcomingAppointments(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT appointment_id, person_id, start_time, status, location, account_id
		FROM %s.appointments
		WHERE start_time >= $1 AND start_time < $2
		  AND lower(status) NOT IN ('cancelled', 'canceled', 'no_show')
		ORDER BY start_time, appointment_id`, r.schema)

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.PersonID, &a.StartTime, &a.Status, &a.Location, &a.AccountID); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read appointments: %w", err)
	}

	return appointments, nil
}

// GetPersons returns person records for the given IDs
func (r *Repository) GetPersons(ctx context.Context, personIDs []string) (map[string]domain.Person, error) {
	if len(personIDs) == 0 {
		return map[string]domain.Person{}, nil
	}

	query := fmt.Sprintf(`
		SELECT person_id, mrn, first_name, last_name, birth_date, sex,
		       COALESCE(home_phone, ''), COALESCE(mobile_phone, ''),
		       COALESCE(address_line, ''), COALESCE(zip, ''),
		       COALESCE(portal_active, false)
		FROM %s.persons
		WHERE person_id = ANY($1)`, r.schema)

	rows, err := r.pool.Query(ctx, query, personIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get persons: %w", err)
	}
	defer rows.Close()

	persons := make(map[string]domain.Person, len(personIDs))
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.BirthDate, &p.Sex,
			&p.HomePhone, &p.MobilePhone, &p.AddressLine, &p.ZIP, &p.PortalActive); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read persons: %w", err)
	}

	return persons, nil
}

// ListGuardianLinks returns the primary legal guardian links for the
// given persons.
func (r *Repository) ListGuardianLinks(ctx context.Context, personIDs []string) ([]domain.GuardianLink, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT person_id, guardian_name, COALESCE(home_phone, ''), COALESCE(mobile_phone, ''),
		       legal_guardian, ordinal
		FROM %s.guardian_links
		WHERE person_id = ANY($1) AND legal_guardian AND ordinal = 1`, r.schema)

	return r.queryGuardianLinks(ctx, query, personIDs)
}

// ListGuardianLinksByNames returns primary legal guardian links whose
// guardian name matches one of the given lowercased names. This is a
// coarse SQL prefilter; callers compare the full normalized tuple.
func (r *Repository) ListGuardianLinksByNames(ctx context.Context, lowerNames []string) ([]domain.GuardianLink, error) {
	if len(lowerNames) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT person_id, guardian_name, COALESCE(home_phone, ''), COALESCE(mobile_phone, ''),
		       legal_guardian, ordinal
		FROM %s.guardian_links
		WHERE lower(trim(guardian_name)) = ANY($1) AND legal_guardian AND ordinal = 1`, r.schema)

	return r.queryGuardianLinks(ctx, query, lowerNames)
}

func (r *Repository) queryGuardianLinks(ctx context.Context, query string, arg []string) ([]domain.GuardianLink, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list guardian links: %w", err)
	}
	defer rows.Close()

	var links []domain.GuardianLink
	for rows.Next() {
		var l domain.GuardianLink
		if err := rows.Scan(&l.PersonID, &l.GuardianName, &l.HomePhone, &l.MobilePhone,
			&l.LegalGuardian, &l.Ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan guardian link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guardian links: %w", err)
	}

	return links, nil
}

// GetBillingAccounts returns billing accounts for the given IDs
func (r *Repository) GetBillingAccounts(ctx context.Context, accountIDs []string) (map[string]domain.BillingAccount, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.BillingAccount{}, nil
	}

	query := fmt.Sprintf(`
		SELECT account_id, COALESCE(guarantor_name, '')
		FROM %s.billing_accounts
		WHERE account_id = ANY($1)`, r.schema)

	rows, err := r.pool.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get billing accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]domain.BillingAccount, len(accountIDs))
	for rows.Next() {
		var a domain.BillingAccount
		if err := rows.Scan(&a.ID, &a.GuarantorName); err != nil {
			return nil, fmt.Errorf("failed to scan billing account: %w", err)
		}
		accounts[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billing accounts: %w", err)
	}

	return accounts, nil
}

// ListAccountMembers returns every patient that appears on any of the
// given billing accounts through a non-cancelled appointment, past or
// future.
func (r *Repository) ListAccountMembers(ctx context.Context, accountIDs []string) ([]domain.AccountMember, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT account_id, person_id
		FROM %s.appointments
		WHERE account_id = ANY($1)
		  AND lower(status) NOT IN ('cancelled', 'canceled', 'no_show')
		ORDER BY account_id, person_id`, r.schema)

	rows, err := r.pool.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list account members: %w", err)
	}
	defer rows.Close()

	var members []domain.AccountMember
	for rows.Next() {
		var m domain.AccountMember
		if err := rows.Scan(&m.AccountID, &m.PersonID); err != nil {
			return nil, fmt.Errorf("failed to scan account member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read account members: %w", err)
	}

	return members, nil
}

// ListDueStatuses returns current due statuses for the given persons
// restricted to the given topics.
func (r *Repository) ListDueStatuses(ctx context.Context, personIDs, topicIDs []string) ([]domain.DueStatus, error) {
	if len(personIDs) == 0 || len(topicIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT person_id, topic_id, state
		FROM %s.due_statuses
		WHERE person_id = ANY($1) AND upper(topic_id) = ANY($2)`, r.schema)

	rows, err := r.pool.Query(ctx, query, personIDs, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list due statuses: %w", err)
	}
	defer rows.Close()

	var statuses []domain.DueStatus
	for rows.Next() {
		var s domain.DueStatus
		if err := rows.Scan(&s.PersonID, &s.TopicID, &s.State); err != nil {
			return nil, fmt.Errorf("failed to scan due status: %w", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due statuses: %w", err)
	}

	return statuses, nil
}

// ListDueHistory returns historical due-status snapshots for the given
// persons and topics, ordered by capture time.
func (r *Repository) ListDueHistory(ctx context.Context, personIDs, topicIDs []string) ([]domain.DueSnapshot, error) {
	if len(personIDs) == 0 || len(topicIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT person_id, topic_id, state, completed_at, snapshot_at
		FROM %s.due_status_history
		WHERE person_id = ANY($1) AND upper(topic_id) = ANY($2)
		ORDER BY snapshot_at`, r.schema)

	rows, err := r.pool.Query(ctx, query, personIDs, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list due history: %w", err)
	}
	defer rows.Close()

	var snaps []domain.DueSnapshot
	for rows.Next() {
		var s domain.DueSnapshot
		if err := rows.Scan(&s.PersonID, &s.TopicID, &s.State, &s.CompletedAt, &s.SnapshotAt); err != nil {
			return nil, fmt.Errorf("failed to scan due snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due history: %w", err)
	}

	return snaps, nil
}

// ListDiagnosisMatches returns the persons among personIDs carrying an
// active diagnosis whose code starts with codePrefix.
func (r *Repository) ListDiagnosisMatches(ctx context.Context, personIDs []string, codePrefix string) (map[string]bool, error) {
	if len(personIDs) == 0 {
		return map[string]bool{}, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT person_id
		FROM %s.diagnoses
		WHERE person_id = ANY($1) AND active AND code LIKE $2 || '%%'`, r.schema)

	rows, err := r.pool.Query(ctx, query, personIDs, codePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnosis matches: %w", err)
	}
	defer rows.Close()

	matches := make(map[string]bool)
	for rows.Next() {
		var personID string
		if err := rows.Scan(&personID); err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis match: %w", err)
		}
		matches[personID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diagnosis matches: %w", err)
	}

	return matches, nil
}
