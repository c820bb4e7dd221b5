// Package persistence defines the store contract the migration engine needs
// from the surrounding application and provides the Postgres and dry-run
// implementations plus the batch-with-fallback write strategy.
package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smccd/doorcard-data/modules/migration/domain"
)

// Store is the full persistence surface the engine consumes: bulk insert
// with duplicate skipping, single insert, find by unique key, and count, for
// each target table. Nothing else of the application is depended on.
type Store interface {
	// Ping verifies the store is reachable before any phase starts.
	Ping(ctx context.Context) error
	UserStore
	DoorcardStore
	AppointmentStore
}

type UserStore interface {
	// BulkInsertUsers inserts a batch, skipping rows that collide on a
	// unique key, and returns the number actually inserted.
	BulkInsertUsers(ctx context.Context, users []domain.User) (int64, error)
	InsertUser(ctx context.Context, user domain.User) error
	// FindUsersByUsernames resolves usernames (case-insensitive) to stored
	// rows; usernames with no row are simply absent from the result.
	FindUsersByUsernames(ctx context.Context, usernames []string) ([]domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type DoorcardStore interface {
	BulkInsertDoorcards(ctx context.Context, cards []domain.Doorcard) (int64, error)
	InsertDoorcard(ctx context.Context, card domain.Doorcard) error
	FindDoorcardBySlug(ctx context.Context, slug string) (domain.Doorcard, error)
	CountDoorcards(ctx context.Context) (int64, error)
}

type AppointmentStore interface {
	BulkInsertAppointments(ctx context.Context, appts []domain.Appointment) (int64, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) error
	FindAppointmentsByDoorcardID(ctx context.Context, doorcardID uuid.UUID) ([]domain.Appointment, error)
	CountAppointments(ctx context.Context) (int64, error)
}

// ErrNotFound is returned by the find operations when no row matches.
var ErrNotFound = errors.New("not found")

const uniqueViolation = "23505"

// IsDuplicate reports whether err is a unique-key collision. The persister
// counts these as skipped duplicates, never as failures.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsSystemic reports whether err indicates the store itself is unhealthy
// rather than one row being bad: transport failures, cancelled contexts and
// SQLSTATE class 08 (connection exception). Systemic failures abort the run;
// everything else is attributable to a row and becomes a reject.
func IsSystemic(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	// a non-database error from a database call is transport-level
	return !errors.Is(err, ErrNotFound)
}
