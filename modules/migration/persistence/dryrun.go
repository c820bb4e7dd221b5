package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/smccd/doorcard-data/modules/migration/domain"
)

// DryRunStore accepts every write without touching a database. Bulk inserts
// report the full batch as inserted so a dry run walks the same code path and
// produces the same counts as a clean live run against an empty schema.
type DryRunStore struct {
	users        int64
	doorcards    int64
	appointments int64
}

func NewDryRunStore() *DryRunStore {
	return &DryRunStore{}
}

func (s *DryRunStore) Ping(context.Context) error { return nil }

func (s *DryRunStore) BulkInsertUsers(_ context.Context, users []domain.User) (int64, error) {
	s.users += int64(len(users))
	return int64(len(users)), nil
}

func (s *DryRunStore) InsertUser(context.Context, domain.User) error {
	s.users++
	return nil
}

func (s *DryRunStore) FindUsersByUsernames(context.Context, []string) ([]domain.User, error) {
	return nil, nil
}

func (s *DryRunStore) CountUsers(context.Context) (int64, error) { return s.users, nil }

func (s *DryRunStore) BulkInsertDoorcards(_ context.Context, cards []domain.Doorcard) (int64, error) {
	s.doorcards += int64(len(cards))
	return int64(len(cards)), nil
}

func (s *DryRunStore) InsertDoorcard(context.Context, domain.Doorcard) error {
	s.doorcards++
	return nil
}

func (s *DryRunStore) FindDoorcardBySlug(context.Context, string) (domain.Doorcard, error) {
	return domain.Doorcard{}, ErrNotFound
}

func (s *DryRunStore) CountDoorcards(context.Context) (int64, error) { return s.doorcards, nil }

func (s *DryRunStore) BulkInsertAppointments(_ context.Context, appts []domain.Appointment) (int64, error) {
	s.appointments += int64(len(appts))
	return int64(len(appts)), nil
}

func (s *DryRunStore) InsertAppointment(context.Context, domain.Appointment) error {
	s.appointments++
	return nil
}

func (s *DryRunStore) FindAppointmentsByDoorcardID(context.Context, uuid.UUID) ([]domain.Appointment, error) {
	return nil, nil
}

func (s *DryRunStore) CountAppointments(context.Context) (int64, error) { return s.appointments, nil }
