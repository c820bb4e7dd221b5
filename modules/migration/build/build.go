// Package build turns raw extract records into canonical entities, consulting
// and extending the per-run reconciliation indices. A build failure carries
// the reject reason as its error message; no entity is produced for a failed
// row.
package build

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/smccd/doorcard-data/modules/migration/domain"
	"github.com/smccd/doorcard-data/modules/migration/identity"
	"github.com/smccd/doorcard-data/modules/migration/normalize"
)

// Builder carries the run-scoped inputs every entity build needs. It owns no
// persistence; the orchestrator wires the indices in and reads them back out.
type Builder struct {
	Users       *identity.UserIndex
	Doorcards   *identity.DoorcardIndex
	Categories  *identity.CategoryIndex
	EmailDomain string
	// PasswordHash is the shared default credential, hashed once per run.
	PasswordHash string
}

// User builds a canonical user from a user-extract row.
func (b *Builder) User(raw domain.RawUser) (domain.User, error) {
	if domain.Missing(raw.Username) {
		return domain.User{}, fmt.Errorf("empty username")
	}
	username := strings.TrimSpace(raw.Username)
	return domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        b.email(username),
		PasswordHash: b.PasswordHash,
		Role:         normalize.Role(raw.RoleText),
		DisplayName:  username,
	}, nil
}

// ReferencedUser builds a user for a username that appears only in doorcard
// or appointment rows, with the default role. The doorcard extract is the
// system of record for who actually used the legacy system, so these users
// are created rather than rejected.
func (b *Builder) ReferencedUser(username string) domain.User {
	username = strings.TrimSpace(username)
	return domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        b.email(username),
		PasswordHash: b.PasswordHash,
		Role:         domain.RoleFaculty,
		DisplayName:  username,
	}
}

// Doorcard builds a canonical doorcard. The owning user must already be in
// the user index; college and term are required fields.
func (b *Builder) Doorcard(raw domain.RawDoorcard) (domain.Doorcard, error) {
	if domain.Missing(raw.Username) {
		return domain.Doorcard{}, fmt.Errorf("empty username")
	}
	userID, ok := b.Users.Get(raw.Username)
	if !ok {
		return domain.Doorcard{}, fmt.Errorf("user not found for username: %s", strings.TrimSpace(raw.Username))
	}

	if domain.Missing(raw.CollegeText) {
		return domain.Doorcard{}, fmt.Errorf("missing college")
	}
	college, ok := normalize.College(raw.CollegeText)
	if !ok {
		return domain.Doorcard{}, fmt.Errorf("invalid college: %s", raw.CollegeText)
	}

	season, year, err := normalize.Term(raw.TermText)
	if err != nil {
		return domain.Doorcard{}, err
	}

	name := strings.TrimSpace(raw.Title)
	return domain.Doorcard{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Term:         season,
		Year:         year,
		College:      college,
		Slug:         Slug(name, season, year),
		OfficeNumber: "TBD",
		IsActive:     false,
		IsPublic:     false,
	}, nil
}

// Appointment builds a canonical appointment. When the referenced legacy
// doorcard id is unknown, a placeholder doorcard is synthesized and
// registered so the schedule row survives under an owning record; the
// returned placeholder is non-nil exactly when this call created one.
func (b *Builder) Appointment(raw domain.RawAppointment) (domain.Appointment, *domain.Doorcard, error) {
	if domain.Missing(raw.Username) {
		return domain.Appointment{}, nil, fmt.Errorf("empty username for appointment: %s", raw.ActivityText)
	}

	// day is validated before the doorcard is resolved so a rejected row
	// never synthesizes a placeholder it will not use
	day, ok := normalize.Day(raw.DayText)
	if !ok {
		return domain.Appointment{}, nil, fmt.Errorf("invalid day of week: %s", raw.DayText)
	}

	var placeholder *domain.Doorcard
	doorcardID, ok := b.Doorcards.Get(raw.LegacyDoorcardID)
	if !ok {
		userID, ok := b.Users.Get(raw.Username)
		if !ok {
			return domain.Appointment{}, nil, fmt.Errorf("user not found for username: %s", strings.TrimSpace(raw.Username))
		}
		p := b.placeholderDoorcard(raw.LegacyDoorcardID, userID)
		b.Doorcards.Put(raw.LegacyDoorcardID, p.ID)
		doorcardID = p.ID
		placeholder = &p
	}

	return domain.Appointment{
		ID:         uuid.New(),
		DoorcardID: doorcardID,
		Name:       strings.TrimSpace(raw.ActivityText),
		Category:   b.Categories.Resolve(raw.LegacyCategoryID),
		DayOfWeek:  day,
		StartTime:  normalize.Time(raw.StartTimeText),
		EndTime:    normalize.Time(raw.EndTimeText),
		Location:   normalize.Location(raw.ActivityText),
	}, placeholder, nil
}

// placeholderDoorcard synthesizes the stand-in record for a doorcard id the
// doorcard extract never delivered. Defaults match the last term the legacy
// system was live; the title embeds the legacy id so operators can spot
// these cards later.
func (b *Builder) placeholderDoorcard(legacyID string, userID uuid.UUID) domain.Doorcard {
	legacyID = strings.TrimSpace(legacyID)
	name := fmt.Sprintf("Legacy Doorcard (ID: %s)", legacyID)
	return domain.Doorcard{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Term:         domain.TermFall,
		Year:         2021,
		College:      domain.CollegeSkyline,
		Slug:         fmt.Sprintf("legacy-%s-%s", legacyID, slugSuffix()),
		OfficeNumber: "Unknown",
		IsActive:     false,
		IsPublic:     false,
	}
}

func (b *Builder) email(username string) string {
	return fmt.Sprintf("%s@%s", strings.ToLower(strings.TrimSpace(username)), b.EmailDomain)
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a URL slug from the doorcard name, season and year. A short
// random suffix keeps slugs unique across rows with identical names.
func Slug(name string, season domain.TermSeason, year int) string {
	base := nonSlugRe.ReplaceAllString(strings.ToLower(name), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "doorcard"
	}
	return fmt.Sprintf("%s-%s-%d-%s", base, strings.ToLower(string(season)), year, slugSuffix())
}

func slugSuffix() string {
	return uuid.NewString()[:5]
}
