package domain

import "strings"

// Raw record variants mirror the legacy extract columns verbatim. All fields
// are untrusted text; use Missing to test for absent values.

type RawUser struct {
	Line     int
	Username string
	RoleText string
}

type RawDoorcard struct {
	Line          int
	LegacyID      string
	Username      string
	Title         string
	StartDateText string
	EndDateText   string
	TermText      string
	CollegeText   string
}

type RawAppointment struct {
	Line             int
	LegacyID         string
	LegacyCategoryID string
	Username         string
	LegacyDoorcardID string
	ActivityText     string
	StartTimeText    string
	EndTimeText      string
	DayText          string
}

type RawCategory struct {
	Line             int
	LegacyCategoryID string
	Name             string
	Color            string
}

// Reject pairs a raw row with the reason it could not become a canonical
// entity. Columns preserves the original cell values in input column order
// so reject files can mirror the source layout.
type Reject struct {
	SourceFile string
	Line       int
	Columns    []string
	Reason     string
}

var nullTokens = map[string]struct{}{
	"null":   {},
	"(null)": {},
	"n/a":    {},
}

// Missing reports whether a raw field should be treated as absent. Empty
// strings and the legacy system's literal null tokens both count.
func Missing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}
