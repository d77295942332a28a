package service

import (
	"context"
	"sort"
	"time"

	"caregaps_backend/internal/campaign/domain"
)

// resolveSubjects loads appointments inside the lookahead window and
// collapses them to one subject per patient: the earliest upcoming
// appointment, ties broken by appointment ID. Appointments without a
// billing account cannot anchor household matching and are dropped.
func (s *Service) resolveSubjects(ctx context.Context, now time.Time) ([]domain.Subject, error) {
	from := now
	to := now.AddDate(0, 0, s.cfg.GetWindowDays())

	appointments, err := s.source.ListUpcomingAppointments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	earliest := make(map[string]domain.Appointment)
	for _, a := range appointments {
		if a.Cancelled() || a.AccountID == "" {
			continue
		}
		prev, ok := earliest[a.PersonID]
		if !ok || a.StartTime.Before(prev.StartTime) ||
			(a.StartTime.Equal(prev.StartTime) && a.ID < prev.ID) {
			earliest[a.PersonID] = a
		}
	}

	subjects := make([]domain.Subject, 0, len(earliest))
	for personID, a := range earliest {
		subjects = append(subjects, domain.Subject{
			PersonID:      personID,
			AppointmentID: a.ID,
			StartTime:     a.StartTime,
			Location:      a.Location,
			AccountID:     a.AccountID,
		})
	}

	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].PersonID < subjects[j].PersonID
	})

	return subjects, nil
}
