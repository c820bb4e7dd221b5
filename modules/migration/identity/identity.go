// Package identity holds the per-run reconciliation indices that tie legacy
// identifiers to canonical ids. The indices are plain in-memory maps owned
// by the orchestrator and passed to the builders; they carry no state across
// runs.
package identity

import (
	"strings"

	"github.com/google/uuid"

	"github.com/smccd/doorcard-data/modules/migration/domain"
	"github.com/smccd/doorcard-data/modules/migration/normalize"
)

// UserIndex maps canonical usernames to user ids.
type UserIndex struct {
	ids map[string]uuid.UUID
}

func NewUserIndex() *UserIndex {
	return &UserIndex{ids: make(map[string]uuid.UUID)}
}

func (x *UserIndex) Put(username string, id uuid.UUID) {
	x.ids[normalize.Username(username)] = id
}

func (x *UserIndex) Get(username string) (uuid.UUID, bool) {
	id, ok := x.ids[normalize.Username(username)]
	return id, ok
}

func (x *UserIndex) Delete(username string) {
	delete(x.ids, normalize.Username(username))
}

func (x *UserIndex) Len() int { return len(x.ids) }

// DoorcardIndex maps raw legacy doorcard ids to canonical doorcard ids. It
// grows during the doorcard phase and again whenever integrity repair
// synthesizes a placeholder.
type DoorcardIndex struct {
	ids map[string]uuid.UUID
}

func NewDoorcardIndex() *DoorcardIndex {
	return &DoorcardIndex{ids: make(map[string]uuid.UUID)}
}

func (x *DoorcardIndex) Put(legacyID string, id uuid.UUID) {
	x.ids[strings.TrimSpace(legacyID)] = id
}

func (x *DoorcardIndex) Get(legacyID string) (uuid.UUID, bool) {
	id, ok := x.ids[strings.TrimSpace(legacyID)]
	return id, ok
}

func (x *DoorcardIndex) Delete(legacyID string) {
	delete(x.ids, strings.TrimSpace(legacyID))
}

func (x *DoorcardIndex) Len() int { return len(x.ids) }

// CategoryIndex maps legacy category ids to canonical category tags. It is
// seeded with the mapping established during data analysis of the legacy
// extracts and can be refined by the category extract. Unknown ids resolve
// to the catch-all rather than failing: losing a schedule block over an
// unmapped category id preserves nothing.
type CategoryIndex struct {
	tags map[string]domain.Category
}

// NewCategoryIndex returns an index pre-seeded with the default legacy
// category table.
func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{tags: map[string]domain.Category{
		"1": domain.CategoryOfficeHours,
		"2": domain.CategoryInClass,
		"3": domain.CategoryLecture,
		"4": domain.CategoryLab,
		"5": domain.CategoryHoursByArrangement,
		"6": domain.CategoryReference,
		"7": domain.CategoryReference,
	}}
}

func (x *CategoryIndex) Put(legacyID string, tag domain.Category) {
	x.tags[strings.TrimSpace(legacyID)] = tag
}

// Resolve returns the category for a legacy id, falling back to the
// catch-all for unknown ids. It never fails.
func (x *CategoryIndex) Resolve(legacyID string) domain.Category {
	if tag, ok := x.tags[strings.TrimSpace(legacyID)]; ok {
		return tag
	}
	return domain.CategoryOther
}

// Override refines the index from a category extract row by keyword-matching
// the legacy category name. Names that match nothing leave the seeded entry
// (or the catch-all) in place.
func (x *CategoryIndex) Override(row domain.RawCategory) {
	if domain.Missing(row.LegacyCategoryID) || domain.Missing(row.Name) {
		return
	}
	upper := strings.ToUpper(row.Name)
	switch {
	case strings.Contains(upper, "OFFICE"):
		x.Put(row.LegacyCategoryID, domain.CategoryOfficeHours)
	case strings.Contains(upper, "CLASS"):
		x.Put(row.LegacyCategoryID, domain.CategoryInClass)
	case strings.Contains(upper, "LECTURE"):
		x.Put(row.LegacyCategoryID, domain.CategoryLecture)
	case strings.Contains(upper, "LAB"):
		x.Put(row.LegacyCategoryID, domain.CategoryLab)
	case strings.Contains(upper, "ARRANGEMENT"):
		x.Put(row.LegacyCategoryID, domain.CategoryHoursByArrangement)
	case strings.Contains(upper, "REFERENCE"):
		x.Put(row.LegacyCategoryID, domain.CategoryReference)
	}
}
