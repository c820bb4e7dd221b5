package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smccd/doorcard-data/modules/migration/domain"
)

// PgStore persists canonical entities through a pgx pool. Bulk inserts use
// multi-row VALUES with ON CONFLICT DO NOTHING so rows colliding on any
// unique key are skipped, not errored.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Ping verifies the store is reachable before any phase starts.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = "id, username, email, password_hash, role, display_name"

func (s *PgStore) BulkInsertUsers(ctx context.Context, users []domain.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}
	sql, args := multiInsert("users", userColumns, len(users), 6, func(u domain.User) []any {
		return []any{u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.DisplayName}
	}, users)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) InsertUser(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.DisplayName,
	)
	return err
}

func (s *PgStore) FindUsersByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(strings.TrimSpace(u))
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = ANY($1)`,
		lowered,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.DisplayName); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PgStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, "users")
}

const doorcardColumns = "id, user_id, name, term, year, college, slug, office_number, is_active, is_public"

func (s *PgStore) BulkInsertDoorcards(ctx context.Context, cards []domain.Doorcard) (int64, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	sql, args := multiInsert("doorcards", doorcardColumns, len(cards), 10, func(d domain.Doorcard) []any {
		return []any{
			d.ID, d.UserID, d.Name, string(d.Term), d.Year, string(d.College),
			d.Slug, d.OfficeNumber, d.IsActive, d.IsPublic,
		}
	}, cards)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) InsertDoorcard(ctx context.Context, d domain.Doorcard) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doorcards (`+doorcardColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.UserID, d.Name, string(d.Term), d.Year, string(d.College),
		d.Slug, d.OfficeNumber, d.IsActive, d.IsPublic,
	)
	return err
}

func (s *PgStore) FindDoorcardBySlug(ctx context.Context, slug string) (domain.Doorcard, error) {
	var d domain.Doorcard
	var term, college string
	err := s.pool.QueryRow(ctx,
		`SELECT `+doorcardColumns+` FROM doorcards WHERE slug = $1`,
		slug,
	).Scan(&d.ID, &d.UserID, &d.Name, &term, &d.Year, &college,
		&d.Slug, &d.OfficeNumber, &d.IsActive, &d.IsPublic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Doorcard{}, ErrNotFound
		}
		return domain.Doorcard{}, err
	}
	d.Term = domain.TermSeason(term)
	d.College = domain.College(college)
	return d, nil
}

func (s *PgStore) CountDoorcards(ctx context.Context) (int64, error) {
	return s.count(ctx, "doorcards")
}

const appointmentColumns = "id, doorcard_id, name, category, day_of_week, start_time, end_time, location"

func (s *PgStore) BulkInsertAppointments(ctx context.Context, appts []domain.Appointment) (int64, error) {
	if len(appts) == 0 {
		return 0, nil
	}
	sql, args := multiInsert("appointments", appointmentColumns, len(appts), 8, func(a domain.Appointment) []any {
		return []any{
			a.ID, a.DoorcardID, a.Name, string(a.Category), string(a.DayOfWeek),
			a.StartTime, a.EndTime, a.Location,
		}
	}, appts)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) InsertAppointment(ctx context.Context, a domain.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.DoorcardID, a.Name, string(a.Category), string(a.DayOfWeek),
		a.StartTime, a.EndTime, a.Location,
	)
	return err
}

func (s *PgStore) FindAppointmentsByDoorcardID(ctx context.Context, doorcardID uuid.UUID) ([]domain.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE doorcard_id = $1`,
		doorcardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		var category, day string
		if err := rows.Scan(&a.ID, &a.DoorcardID, &a.Name, &category, &day,
			&a.StartTime, &a.EndTime, &a.Location); err != nil {
			return nil, err
		}
		a.Category = domain.Category(category)
		a.DayOfWeek = domain.DayOfWeek(day)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PgStore) CountAppointments(ctx context.Context) (int64, error) {
	return s.count(ctx, "appointments")
}

func (s *PgStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// multiInsert builds a multi-row INSERT ... ON CONFLICT DO NOTHING statement
// with numbered placeholders.
func multiInsert[T any](table, columns string, rows, width int, values func(T) []any, items []T) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, columns)
	args := make([]any, 0, rows*width)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for j := 0; j < width; j++ {
			if j > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", i*width+j+1)
		}
		sb.WriteString(")")
		args = append(args, values(item)...)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")
	return sb.String(), args
}
