package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smccd/doorcard-data/modules/migration/domain"
	"github.com/smccd/doorcard-data/modules/migration/persistence"
)

// memStore keeps everything in memory and behaves like the real store:
// bulk inserts fail wholesale when the batch contains a bad row, single
// inserts fail only for the bad row.
type memStore struct {
	users        []domain.User
	doorcards    []domain.Doorcard
	appointments []domain.Appointment

	failUsernames map[string]bool
}

func newMemStore() *memStore {
	return &memStore{failUsernames: map[string]bool{}}
}

func rowViolation() error {
	return &pgconn.PgError{Code: "23502", Message: "null value in column"}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) BulkInsertUsers(_ context.Context, users []domain.User) (int64, error) {
	for _, u := range users {
		if m.failUsernames[u.Username] {
			return 0, rowViolation()
		}
	}
	m.users = append(m.users, users...)
	return int64(len(users)), nil
}

func (m *memStore) InsertUser(_ context.Context, u domain.User) error {
	if m.failUsernames[u.Username] {
		return rowViolation()
	}
	m.users = append(m.users, u)
	return nil
}

func (m *memStore) FindUsersByUsernames(_ context.Context, usernames []string) ([]domain.User, error) {
	want := map[string]bool{}
	for _, u := range usernames {
		want[strings.ToLower(u)] = true
	}
	var out []domain.User
	for _, u := range m.users {
		if want[strings.ToLower(u.Username)] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) CountUsers(context.Context) (int64, error) { return int64(len(m.users)), nil }

func (m *memStore) BulkInsertDoorcards(_ context.Context, cards []domain.Doorcard) (int64, error) {
	m.doorcards = append(m.doorcards, cards...)
	return int64(len(cards)), nil
}

func (m *memStore) InsertDoorcard(_ context.Context, d domain.Doorcard) error {
	m.doorcards = append(m.doorcards, d)
	return nil
}

func (m *memStore) FindDoorcardBySlug(_ context.Context, slug string) (domain.Doorcard, error) {
	for _, d := range m.doorcards {
		if d.Slug == slug {
			return d, nil
		}
	}
	return domain.Doorcard{}, persistence.ErrNotFound
}

func (m *memStore) CountDoorcards(context.Context) (int64, error) {
	return int64(len(m.doorcards)), nil
}

func (m *memStore) BulkInsertAppointments(_ context.Context, appts []domain.Appointment) (int64, error) {
	m.appointments = append(m.appointments, appts...)
	return int64(len(appts)), nil
}

func (m *memStore) InsertAppointment(_ context.Context, a domain.Appointment) error {
	m.appointments = append(m.appointments, a)
	return nil
}

func (m *memStore) FindAppointmentsByDoorcardID(_ context.Context, id uuid.UUID) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range m.appointments {
		if a.DoorcardID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CountAppointments(context.Context) (int64, error) {
	return int64(len(m.appointments)), nil
}

func (m *memStore) userByUsername(t *testing.T, username string) domain.User {
	t.Helper()
	for _, u := range m.users {
		if u.Username == username {
			return u
		}
	}
	t.Fatalf("user %q not persisted", username)
	return domain.User{}
}

func writeExtracts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newService(store persistence.Store, dir, rejectsDir string, dryRun bool) *ImportService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewImportService(store, logrus.NewEntry(log), Options{
		Dir:             dir,
		RejectsDir:      rejectsDir,
		DryRun:          dryRun,
		EmailDomain:     "smccd.edu",
		DefaultPassword: "changeme123",
	})
}

const (
	userExtract = "username,userrole\n" +
		"jsmith,System Administrator\n" +
		"mlopez,Support Staff\n" +
		",Faculty\n"

	categoryExtract = "catID,catname,catcolor\n" +
		"1,Office Hours,#ffffff\n" +
		"9,Open Lab,#000000\n"

	doorcardExtract = "doorcardID,username,doorcardname,doorstartdate,doorenddate,doorterm,college\n" +
		"10,jsmith,Spring Office Hours,,,202203,Skyline\n" +
		"11,mlopez,Fall Card,,,Fall 2024,CSM\n" +
		"12,ghost,Ghost Card,,,202203,Skyline\n" +
		"13,jsmith,Bad Term,,,99,Skyline\n"

	appointmentExtract = "appointID,catID,username,doorcardID,appointname,appointstarttime,appointendtime,appointday\n" +
		"100,1,jsmith,10,Office Hours,12/30/99 9:05:00,12/30/99 10:00:00,Monday\n" +
		"101,9,mlopez,999,Advising,,,Th\n" +
		"102,1,jsmith,10,Drop In,,,Funday\n"
)

func TestImportService_FullRun(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_USER.csv":        userExtract,
		"TBL_CATEGORY.csv":    categoryExtract,
		"TBL_DOORCARD.csv":    doorcardExtract,
		"TBL_APPOINTMENT.csv": appointmentExtract,
	})
	rejectsDir := t.TempDir()
	store := newMemStore()

	sum, err := newService(store, dir, rejectsDir, false).Run(context.Background())
	require.NoError(t, err)

	// jsmith, mlopez, plus ghost synthesized from the doorcard extract
	assert.Equal(t, EntitySummary{Processed: 3, Created: 3, Failed: 1}, sum.Users)
	// three good extract rows plus one placeholder for doorcard 999
	assert.Equal(t, EntitySummary{Processed: 4, Created: 4, Failed: 1}, sum.Doorcards)
	assert.Equal(t, EntitySummary{Processed: 3, Created: 2, Failed: 1}, sum.Appointments)
	assert.Equal(t, 1, sum.PlaceholderDoorcards)
	assert.Equal(t, 3, sum.Rejects.Total)
	assert.False(t, sum.DryRun)
	require.NotNil(t, sum.StoreTotals)
	assert.Equal(t, StoreTotals{Users: 3, Doorcards: 4, Appointments: 2}, *sum.StoreTotals)

	jsmith := store.userByUsername(t, "jsmith")
	assert.Equal(t, "jsmith@smccd.edu", jsmith.Email)
	assert.Equal(t, domain.RoleAdmin, jsmith.Role)
	assert.Equal(t, domain.RoleStaff, store.userByUsername(t, "mlopez").Role)
	assert.Equal(t, domain.RoleFaculty, store.userByUsername(t, "ghost").Role)

	var spring domain.Doorcard
	for _, d := range store.doorcards {
		if d.Name == "Spring Office Hours" {
			spring = d
		}
	}
	require.NotEqual(t, uuid.Nil, spring.ID)
	assert.Equal(t, jsmith.ID, spring.UserID)
	assert.Equal(t, domain.TermSpring, spring.Term)
	assert.Equal(t, 2022, spring.Year)
	assert.Equal(t, domain.CollegeSkyline, spring.College)

	appts, err := store.FindAppointmentsByDoorcardID(context.Background(), spring.ID)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, domain.CategoryOfficeHours, appts[0].Category)
	assert.Equal(t, domain.Monday, appts[0].DayOfWeek)
	assert.Equal(t, "09:05", appts[0].StartTime)
	assert.Equal(t, "10:00", appts[0].EndTime)

	// the placeholder owns the appointment with the dangling doorcard ref
	var placeholder domain.Doorcard
	for _, d := range store.doorcards {
		if d.Name == "Legacy Doorcard (ID: 999)" {
			placeholder = d
		}
	}
	require.NotEqual(t, uuid.Nil, placeholder.ID)
	assert.Equal(t, store.userByUsername(t, "mlopez").ID, placeholder.UserID)
	assert.False(t, placeholder.IsPublic)
	orphaned, err := store.FindAppointmentsByDoorcardID(context.Background(), placeholder.ID)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)
	// category 9 was overridden to LAB by the category extract
	assert.Equal(t, domain.CategoryLab, orphaned[0].Category)
}

func TestImportService_RejectFiles(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_USER.csv":        userExtract,
		"TBL_DOORCARD.csv":    doorcardExtract,
		"TBL_APPOINTMENT.csv": appointmentExtract,
	})
	rejectsDir := t.TempDir()

	sum, err := newService(newMemStore(), dir, rejectsDir, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Rejects.Files, 3)

	byName := map[string]string{}
	for _, path := range sum.Rejects.Files {
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		byName[filepath.Base(path)] = string(raw)
	}

	users := byName["TBL_USER.csv"]
	assert.Contains(t, users, "_reject_reason")
	assert.Contains(t, users, "empty username")

	doorcards := byName["TBL_DOORCARD.csv"]
	assert.Contains(t, doorcards, "unparseable term")
	assert.Contains(t, doorcards, "13")

	appointments := byName["TBL_APPOINTMENT.csv"]
	assert.Contains(t, appointments, "invalid day of week: Funday")

	assert.Len(t, sum.Rejects.Reasons, 3)
}

// A user whose persistence fails must disappear from the reconciliation map
// so dependent rows are rejected instead of pointing at a row that does not
// exist.
func TestImportService_PersistFailureCascades(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_USER.csv": "username,userrole\njsmith,Faculty\n",
		"TBL_DOORCARD.csv": "doorcardID,username,doorcardname,doorterm,college\n" +
			"10,jsmith,Card,202203,Skyline\n",
		"TBL_APPOINTMENT.csv": "appointID,username,doorcardID,appointname,appointday\n" +
			"100,jsmith,10,Office Hours,Monday\n",
	})
	rejectsDir := t.TempDir()
	store := newMemStore()
	store.failUsernames["jsmith"] = true

	sum, err := newService(store, dir, rejectsDir, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, EntitySummary{Processed: 1, Failed: 1}, sum.Users)
	assert.Equal(t, EntitySummary{Processed: 1, Failed: 1}, sum.Doorcards)
	assert.Equal(t, EntitySummary{Processed: 1, Failed: 1}, sum.Appointments)
	assert.Empty(t, store.doorcards)
	assert.Empty(t, store.appointments)
	assert.Equal(t, 3, sum.Rejects.Total)
}

func TestImportService_MissingRequiredExtract(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_DOORCARD.csv": doorcardExtract,
	})
	_, err := newService(newMemStore(), dir, t.TempDir(), false).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TBL_APPOINTMENT")
}

func TestImportService_OptionalExtractsAbsent(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_DOORCARD.csv": "doorcardID,username,doorcardname,doorterm,college\n" +
			"10,jsmith,Card,202203,Skyline\n",
		"TBL_APPOINTMENT.csv": "appointID,catID,username,doorcardID,appointname,appointday\n" +
			"100,1,jsmith,10,Office Hours,Monday\n",
	})
	store := newMemStore()

	sum, err := newService(store, dir, t.TempDir(), false).Run(context.Background())
	require.NoError(t, err)

	// every persisted user came from the referencing extracts
	assert.Equal(t, EntitySummary{Processed: 0, Created: 1}, sum.Users)
	assert.Equal(t, domain.RoleFaculty, store.userByUsername(t, "jsmith").Role)
	assert.Equal(t, 1, sum.Doorcards.Created)
	assert.Equal(t, 1, sum.Appointments.Created)
	assert.Zero(t, sum.Rejects.Total)
}

func TestImportService_DryRunPersistsNothing(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_USER.csv":        userExtract,
		"TBL_CATEGORY.csv":    categoryExtract,
		"TBL_DOORCARD.csv":    doorcardExtract,
		"TBL_APPOINTMENT.csv": appointmentExtract,
	})
	rejectsDir := t.TempDir()
	store := persistence.NewDryRunStore()

	sum, err := newService(store, dir, rejectsDir, true).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Nil(t, sum.StoreTotals)

	// dry run reports the same counts as a live run against an empty schema
	assert.Equal(t, EntitySummary{Processed: 3, Created: 3, Failed: 1}, sum.Users)
	assert.Equal(t, EntitySummary{Processed: 4, Created: 4, Failed: 1}, sum.Doorcards)
	assert.Equal(t, EntitySummary{Processed: 3, Created: 2, Failed: 1}, sum.Appointments)
	assert.Equal(t, 3, sum.Rejects.Total)
	// rejects are still written so a dry run can be reviewed
	require.Len(t, sum.Rejects.Files, 3)
}

func TestImportService_DuplicateRowsSkipped(t *testing.T) {
	dir := writeExtracts(t, map[string]string{
		"TBL_USER.csv": "username,userrole\njsmith,Faculty\nJSMITH,Staff\n",
		"TBL_DOORCARD.csv": "doorcardID,username,doorcardname,doorterm,college\n" +
			"10,jsmith,Card,202203,Skyline\n" +
			"10,jsmith,Card Again,202203,Skyline\n",
		"TBL_APPOINTMENT.csv": "appointID,username,doorcardID,appointname,appointday\n" +
			"100,jsmith,10,Office Hours,Monday\n",
	})
	store := newMemStore()

	sum, err := newService(store, dir, t.TempDir(), false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, EntitySummary{Processed: 2, Created: 1, Duplicated: 1}, sum.Users)
	assert.Equal(t, EntitySummary{Processed: 2, Created: 1, Duplicated: 1}, sum.Doorcards)
	assert.Equal(t, 1, sum.Appointments.Created)
	require.Len(t, store.doorcards, 1)
	assert.Equal(t, "Card", store.doorcards[0].Name)
}
