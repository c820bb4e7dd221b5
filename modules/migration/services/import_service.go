// Package services orchestrates the one-shot migration run: it streams the
// legacy extracts in dependency order, reconciles identifiers through the
// in-memory indices, persists each entity kind in batches and accumulates
// everything unconvertible into reject files plus a machine-readable summary.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/smccd/doorcard-data/modules/migration/build"
	"github.com/smccd/doorcard-data/modules/migration/domain"
	"github.com/smccd/doorcard-data/modules/migration/identity"
	"github.com/smccd/doorcard-data/modules/migration/persistence"
	"github.com/smccd/doorcard-data/modules/migration/rejects"
	"github.com/smccd/doorcard-data/modules/migration/source"
)

// Options configures one import run.
type Options struct {
	// Dir holds the legacy extracts. The doorcard and appointment extracts
	// are required; user and category extracts are optional.
	Dir string
	// RejectsDir receives one reject file per extract that produced rejects.
	RejectsDir string
	// DryRun walks the full pipeline against a store that accepts every
	// write, so counts and rejects match what a live run would produce.
	DryRun bool

	EmailDomain     string
	DefaultPassword string

	UserBatchSize        int
	DoorcardBatchSize    int
	AppointmentBatchSize int

	// SummaryErrorLimit caps how many reject reasons the summary inlines.
	SummaryErrorLimit int
}

// EntitySummary accounts for one entity kind. Processed counts extract rows
// read; Created, Duplicated and Failed partition everything the run tried to
// persist, so for users and doorcards Created can exceed Processed when
// referenced users or placeholder doorcards were synthesized.
type EntitySummary struct {
	Processed  int `json:"processed"`
	Created    int `json:"created"`
	Duplicated int `json:"duplicated"`
	Failed     int `json:"failed"`
}

// RejectSummary points at the reject files and inlines the first reasons.
type RejectSummary struct {
	Total   int      `json:"total"`
	Files   []string `json:"files,omitempty"`
	Reasons []string `json:"first_reasons,omitempty"`
}

// StoreTotals are the post-run table counts as the store reports them, for
// eyeballing against the created counts.
type StoreTotals struct {
	Users        int64 `json:"users"`
	Doorcards    int64 `json:"doorcards"`
	Appointments int64 `json:"appointments"`
}

// Summary is the import run report, written as JSON by the CLI.
type Summary struct {
	DryRun               bool          `json:"dry_run"`
	Users                EntitySummary `json:"users"`
	Doorcards            EntitySummary `json:"doorcards"`
	Appointments         EntitySummary `json:"appointments"`
	PlaceholderDoorcards int           `json:"placeholder_doorcards"`
	Rejects              RejectSummary `json:"rejects"`
	StoreTotals          *StoreTotals  `json:"store_totals,omitempty"`
	Elapsed              string        `json:"elapsed"`
}

// ImportService runs the legacy migration against a store.
type ImportService struct {
	store persistence.Store
	log   *logrus.Entry
	opts  Options
}

func NewImportService(store persistence.Store, log *logrus.Entry, opts Options) *ImportService {
	if opts.UserBatchSize <= 0 {
		opts.UserBatchSize = 100
	}
	if opts.DoorcardBatchSize <= 0 {
		opts.DoorcardBatchSize = 25
	}
	if opts.AppointmentBatchSize <= 0 {
		opts.AppointmentBatchSize = 100
	}
	if opts.SummaryErrorLimit <= 0 {
		opts.SummaryErrorLimit = 25
	}
	return &ImportService{store: store, log: log, opts: opts}
}

// rowRef remembers where a pending entity came from so persistence failures
// can be rejected against the original extract row.
type rowRef struct {
	file  string
	line  int
	cells []string
}

// SetupError marks a failure in the run's inputs or outputs rather than the
// store, so the CLI can exit with the right code.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return e.Err.Error() }
func (e *SetupError) Unwrap() error { return e.Err }

func setupErr(format string, args ...any) error {
	return &SetupError{Err: fmt.Errorf(format, args...)}
}

// Run executes the migration. It returns an error only for setup or systemic
// store failures; per-row problems land in the summary and the reject files.
func (s *ImportService) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	userPath := resolveExtract(s.opts.Dir, source.Users)
	catPath := resolveExtract(s.opts.Dir, source.Categories)
	doorPath := resolveExtract(s.opts.Dir, source.Doorcards)
	if doorPath == "" {
		return nil, setupErr("missing required extract %s in %s", source.Doorcards.Base, s.opts.Dir)
	}
	apptPath := resolveExtract(s.opts.Dir, source.Appointments)
	if apptPath == "" {
		return nil, setupErr("missing required extract %s in %s", source.Appointments.Base, s.opts.Dir)
	}

	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.opts.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, setupErr("hash default password: %w", err)
	}

	builder := &build.Builder{
		Users:        identity.NewUserIndex(),
		Doorcards:    identity.NewDoorcardIndex(),
		Categories:   identity.NewCategoryIndex(),
		EmailDomain:  s.opts.EmailDomain,
		PasswordHash: string(hash),
	}
	sink := rejects.NewSink()
	sum := &Summary{DryRun: s.opts.DryRun}

	if catPath != "" {
		if err := s.loadCategories(catPath, builder.Categories, sink); err != nil {
			return nil, err
		}
	}
	if err := s.runUsers(ctx, builder, userPath, doorPath, apptPath, sink, sum); err != nil {
		return nil, err
	}
	if err := s.runDoorcards(ctx, builder, doorPath, sink, sum); err != nil {
		return nil, err
	}
	if err := s.runAppointments(ctx, builder, apptPath, sink, sum); err != nil {
		return nil, err
	}

	sum.Rejects.Total = sink.Total()
	if sink.Total() > 0 {
		files, err := sink.WriteFiles(s.opts.RejectsDir)
		if err != nil {
			return nil, setupErr("write reject files: %w", err)
		}
		sum.Rejects.Files = files
		for i, r := range sink.All() {
			if i == s.opts.SummaryErrorLimit {
				break
			}
			sum.Rejects.Reasons = append(sum.Rejects.Reasons,
				fmt.Sprintf("%s:%d: %s", r.SourceFile, r.Line, r.Reason))
		}
	}
	if !s.opts.DryRun {
		totals, err := s.storeTotals(ctx)
		if err != nil {
			return nil, fmt.Errorf("count store totals: %w", err)
		}
		sum.StoreTotals = totals
	}
	sum.Elapsed = time.Since(start).Round(time.Millisecond).String()

	s.log.WithFields(logrus.Fields{
		"users":        sum.Users.Created,
		"doorcards":    sum.Doorcards.Created,
		"appointments": sum.Appointments.Created,
		"placeholders": sum.PlaceholderDoorcards,
		"rejects":      sum.Rejects.Total,
		"dry_run":      sum.DryRun,
		"elapsed":      sum.Elapsed,
	}).Info("import finished")

	return sum, nil
}

func (s *ImportService) storeTotals(ctx context.Context) (*StoreTotals, error) {
	var t StoreTotals
	var err error
	if t.Users, err = s.store.CountUsers(ctx); err != nil {
		return nil, err
	}
	if t.Doorcards, err = s.store.CountDoorcards(ctx); err != nil {
		return nil, err
	}
	if t.Appointments, err = s.store.CountAppointments(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ImportService) loadCategories(path string, idx *identity.CategoryIndex, sink *rejects.Sink) error {
	n, err := scan(path, source.Categories, sink, func(rec source.Record) {
		idx.Override(source.DecodeCategory(rec))
	})
	if err != nil {
		return err
	}
	s.log.WithField("rows", n).Info("category overrides loaded")
	return nil
}

// runUsers builds users from the user extract, then sweeps the doorcard and
// appointment extracts for usernames the user extract never delivered and
// synthesizes default-role accounts for them, so every later phase can
// resolve its owner. All users are persisted in one batched phase.
func (s *ImportService) runUsers(
	ctx context.Context,
	builder *build.Builder,
	userPath, doorPath, apptPath string,
	sink *rejects.Sink,
	sum *Summary,
) error {
	var pending []domain.User
	refs := map[uuid.UUID]rowRef{}

	if userPath != "" {
		n, err := scan(userPath, source.Users, sink, func(rec source.Record) {
			raw := source.DecodeUser(rec)
			u, err := builder.User(raw)
			if err != nil {
				sum.Users.Failed++
				sink.Add(filepath.Base(userPath), rec.Line, rec.Cells(len(source.Users.Allowed)), err.Error())
				return
			}
			if _, exists := builder.Users.Get(u.Username); exists {
				sum.Users.Duplicated++
				return
			}
			builder.Users.Put(u.Username, u.ID)
			pending = append(pending, u)
			refs[u.ID] = rowRef{file: filepath.Base(userPath), line: rec.Line, cells: rec.Cells(len(source.Users.Allowed))}
		})
		if err != nil {
			return err
		}
		sum.Users.Processed = n
	}

	// usernames referenced by doorcards or appointments but absent from the
	// user extract still get an account; the referencing extracts are the
	// system of record for who used the legacy system
	referenced := func(path string) func(source.Record) {
		base := filepath.Base(path)
		return func(rec source.Record) {
			username := rec.Get("username")
			if domain.Missing(username) {
				return
			}
			if _, ok := builder.Users.Get(username); ok {
				return
			}
			u := builder.ReferencedUser(username)
			builder.Users.Put(u.Username, u.ID)
			pending = append(pending, u)
			refs[u.ID] = rowRef{file: base, line: rec.Line}
		}
	}
	if _, err := scan(doorPath, source.Doorcards, nil, referenced(doorPath)); err != nil {
		return err
	}
	if _, err := scan(apptPath, source.Appointments, nil, referenced(apptPath)); err != nil {
		return err
	}

	res, err := persistence.PersistBatches(ctx, s.log, pending, s.opts.UserBatchSize,
		s.store.BulkInsertUsers,
		s.store.InsertUser,
		func(u domain.User, err error) {
			builder.Users.Delete(u.Username)
			r := refs[u.ID]
			sink.Add(r.file, r.line, r.cells, fmt.Sprintf("persist user: %v", err))
		},
	)
	sum.Users.Created += res.Inserted
	sum.Users.Duplicated += res.Duplicated
	sum.Users.Failed += res.Failed
	if err != nil {
		return err
	}

	// rows skipped as duplicates already exist under a different id; adopt
	// the stored ids so doorcards attach to the real rows
	if !s.opts.DryRun && res.Duplicated > 0 {
		usernames := make([]string, 0, len(pending))
		for _, u := range pending {
			usernames = append(usernames, u.Username)
		}
		existing, err := s.store.FindUsersByUsernames(ctx, usernames)
		if err != nil {
			return fmt.Errorf("reconcile user ids: %w", err)
		}
		for _, u := range existing {
			builder.Users.Put(u.Username, u.ID)
		}
	}

	s.log.WithFields(logrus.Fields{
		"created":    sum.Users.Created,
		"duplicated": sum.Users.Duplicated,
		"failed":     sum.Users.Failed,
	}).Info("users persisted")
	return nil
}

func (s *ImportService) runDoorcards(
	ctx context.Context,
	builder *build.Builder,
	path string,
	sink *rejects.Sink,
	sum *Summary,
) error {
	base := filepath.Base(path)
	width := len(source.Doorcards.Allowed)

	var pending []domain.Doorcard
	refs := map[uuid.UUID]rowRef{}
	legacyIDs := map[uuid.UUID]string{}

	n, err := scan(path, source.Doorcards, sink, func(rec source.Record) {
		raw := source.DecodeDoorcard(rec)
		if _, exists := builder.Doorcards.Get(raw.LegacyID); exists {
			sum.Doorcards.Duplicated++
			return
		}
		d, err := builder.Doorcard(raw)
		if err != nil {
			sum.Doorcards.Failed++
			sink.Add(base, rec.Line, rec.Cells(width), err.Error())
			return
		}
		builder.Doorcards.Put(raw.LegacyID, d.ID)
		pending = append(pending, d)
		refs[d.ID] = rowRef{file: base, line: rec.Line, cells: rec.Cells(width)}
		legacyIDs[d.ID] = raw.LegacyID
	})
	if err != nil {
		return err
	}
	sum.Doorcards.Processed = n

	res, err := persistence.PersistBatches(ctx, s.log, pending, s.opts.DoorcardBatchSize,
		s.store.BulkInsertDoorcards,
		s.store.InsertDoorcard,
		func(d domain.Doorcard, err error) {
			builder.Doorcards.Delete(legacyIDs[d.ID])
			r := refs[d.ID]
			sink.Add(r.file, r.line, r.cells, fmt.Sprintf("persist doorcard: %v", err))
		},
	)
	sum.Doorcards.Created += res.Inserted
	sum.Doorcards.Duplicated += res.Duplicated
	sum.Doorcards.Failed += res.Failed
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"created":    sum.Doorcards.Created,
		"duplicated": sum.Doorcards.Duplicated,
		"failed":     sum.Doorcards.Failed,
	}).Info("doorcards persisted")
	return nil
}

// runAppointments builds every appointment, collecting the placeholder
// doorcards synthesized for unresolvable doorcard references. Placeholders
// are persisted before the appointments so the schedule rows land under an
// existing owner.
func (s *ImportService) runAppointments(
	ctx context.Context,
	builder *build.Builder,
	path string,
	sink *rejects.Sink,
	sum *Summary,
) error {
	base := filepath.Base(path)
	width := len(source.Appointments.Allowed)

	var pending []domain.Appointment
	var placeholders []domain.Doorcard
	refs := map[uuid.UUID]rowRef{}
	legacyIDs := map[uuid.UUID]string{}

	n, err := scan(path, source.Appointments, sink, func(rec source.Record) {
		raw := source.DecodeAppointment(rec)
		a, placeholder, err := builder.Appointment(raw)
		if err != nil {
			sum.Appointments.Failed++
			sink.Add(base, rec.Line, rec.Cells(width), err.Error())
			return
		}
		if placeholder != nil {
			placeholders = append(placeholders, *placeholder)
			refs[placeholder.ID] = rowRef{file: base, line: rec.Line, cells: rec.Cells(width)}
			legacyIDs[placeholder.ID] = raw.LegacyDoorcardID
		}
		pending = append(pending, a)
		refs[a.ID] = rowRef{file: base, line: rec.Line, cells: rec.Cells(width)}
	})
	if err != nil {
		return err
	}
	sum.Appointments.Processed = n
	sum.PlaceholderDoorcards = len(placeholders)

	if len(placeholders) > 0 {
		s.log.WithField("placeholders", len(placeholders)).
			Warn("synthesizing doorcards for unresolved doorcard references")
		res, err := persistence.PersistBatches(ctx, s.log, placeholders, s.opts.DoorcardBatchSize,
			s.store.BulkInsertDoorcards,
			s.store.InsertDoorcard,
			func(d domain.Doorcard, err error) {
				builder.Doorcards.Delete(legacyIDs[d.ID])
				r := refs[d.ID]
				sink.Add(r.file, r.line, r.cells, fmt.Sprintf("persist placeholder doorcard: %v", err))
			},
		)
		sum.Doorcards.Created += res.Inserted
		sum.Doorcards.Duplicated += res.Duplicated
		sum.Doorcards.Failed += res.Failed
		if err != nil {
			return err
		}
	}

	res, err := persistence.PersistBatches(ctx, s.log, pending, s.opts.AppointmentBatchSize,
		s.store.BulkInsertAppointments,
		s.store.InsertAppointment,
		func(a domain.Appointment, err error) {
			r := refs[a.ID]
			sink.Add(r.file, r.line, r.cells, fmt.Sprintf("persist appointment: %v", err))
		},
	)
	sum.Appointments.Created += res.Inserted
	sum.Appointments.Duplicated += res.Duplicated
	sum.Appointments.Failed += res.Failed
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"created":    sum.Appointments.Created,
		"duplicated": sum.Appointments.Duplicated,
		"failed":     sum.Appointments.Failed,
	}).Info("appointments persisted")
	return nil
}

// scan streams one extract, feeding every readable record to fn. Recoverable
// row failures are rejected into the sink when one is given and skipped
// silently otherwise, so pre-passes do not double-report them. The returned
// count includes unreadable rows.
func scan(path string, spec source.Spec, sink *rejects.Sink, fn func(source.Record)) (int, error) {
	rows, err := spec.Open(path)
	if err != nil {
		return 0, setupErr("open %s: %w", filepath.Base(path), err)
	}
	defer rows.Close()

	base := filepath.Base(path)
	if sink != nil {
		sink.SetHeader(base, rows.Header())
	}

	n := 0
	for {
		rec, err := rows.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		var rowErr *source.RowError
		if errors.As(err, &rowErr) {
			n++
			if sink != nil {
				sink.Add(base, rowErr.Line, nil, fmt.Sprintf("unreadable row: %v", rowErr.Err))
			}
			continue
		}
		if err != nil {
			return n, setupErr("read %s: %w", base, err)
		}
		n++
		fn(rec)
	}
}

// resolveExtract finds the extract for a table, preferring CSV over XLSX.
// An empty path means the extract is absent.
func resolveExtract(dir string, spec source.Spec) string {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(dir, spec.Base+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
