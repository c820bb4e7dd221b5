package domain

import "github.com/google/uuid"

// User is a canonical user row ready for persistence. IDs are generated
// client-side so dependent entities can reference them before any write
// happens (and so a dry run resolves references identically to a live run).
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	DisplayName  string
}

// Doorcard is a canonical doorcard row. Imported cards start inactive and
// private; the owning faculty member re-publishes them after review.
type Doorcard struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	Term         TermSeason
	Year         int
	College      College
	Slug         string
	OfficeNumber string
	IsActive     bool
	IsPublic     bool
}

// Appointment is a canonical appointment row. StartTime and EndTime are
// zero-padded "HH:MM" strings in 24-hour time.
type Appointment struct {
	ID         uuid.UUID
	DoorcardID uuid.UUID
	Name       string
	Category   Category
	DayOfWeek  DayOfWeek
	StartTime  string
	EndTime    string
	Location   string
}
